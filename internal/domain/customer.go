package domain

import "strings"

// Address — адрес доставки клиента.
type Address struct {
	ID         string
	Name       string
	Street     string
	PostalCode string
	City       string
	// Country - код страны ISO-3166 alpha-2.
	Country string
}

// Usable сообщает, можно ли доставить заказ по адресу.
func (a Address) Usable() bool {
	return strings.TrimSpace(a.Country) != ""
}

// Customer — покупатель магазина.
type Customer struct {
	ID               string
	Email            string
	FullName         string
	Language         string
	Addresses        []Address
	DefaultAddressID string
}

// DefaultAddress возвращает адрес по умолчанию, иначе первый пригодный.
func (c Customer) DefaultAddress() (Address, bool) {
	if c.DefaultAddressID != "" {
		for _, addr := range c.Addresses {
			if addr.ID == c.DefaultAddressID && addr.Usable() {
				return addr, true
			}
		}
	}
	for _, addr := range c.Addresses {
		if addr.Usable() {
			return addr, true
		}
	}
	return Address{}, false
}
