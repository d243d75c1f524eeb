// Package numbering выдаёт номера заказов и счетов.
package numbering

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

const (
	// DefaultPrefix - префикс номера заказа по умолчанию.
	DefaultPrefix = "WS"
	dateLayout    = "20060102"
	// InvoiceSequence - глобальный счётчик счетов.
	InvoiceSequence = "invoice"
)

// Config задаёт формат номеров.
type Config struct {
	OrderPrefix  string
	InvoiceStart int64
	// Location определяет календарный день для суточного счётчика. По умолчанию UTC.
	Location *time.Location
}

// Allocator сериализует выдачу номеров поверх атомарных счётчиков хранилища.
type Allocator struct {
	sequences domain.SequenceRepository
	cfg       Config
	logger    *log.Entry

	mu sync.Mutex
}

// NewAllocator создаёт аллокатор номеров.
func NewAllocator(sequences domain.SequenceRepository, cfg Config, logger *log.Entry) *Allocator {
	if strings.TrimSpace(cfg.OrderPrefix) == "" {
		cfg.OrderPrefix = DefaultPrefix
	}
	if cfg.InvoiceStart <= 0 {
		cfg.InvoiceStart = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = log.WithField("component", "numbering")
	}
	return &Allocator{sequences: sequences, cfg: cfg, logger: logger}
}

// NextOrderNumber возвращает номер вида <prefix><YYYYMMDD><NNN>. Счётчик
// сбрасывается каждый день; после 999 номер просто становится длиннее.
func (a *Allocator) NextOrderNumber(now time.Time) (string, error) {
	day := now.In(a.cfg.Location).Format(dateLayout)

	a.mu.Lock()
	defer a.mu.Unlock()

	seq, err := a.sequences.Next(orderSequenceName(day), 1)
	if err != nil {
		return "", fmt.Errorf("allocate order number: %w", err)
	}
	return fmt.Sprintf("%s%s%03d", a.cfg.OrderPrefix, day, seq), nil
}

// NextInvoiceNumber возвращает следующий номер счёта. Пропуски допустимы, повторы нет.
func (a *Allocator) NextInvoiceNumber() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	number, err := a.sequences.Next(InvoiceSequence, a.cfg.InvoiceStart)
	if err != nil {
		return 0, fmt.Errorf("allocate invoice number: %w", err)
	}
	a.logger.WithField("invoice_number", number).Debug("invoice number allocated")
	return number, nil
}

// OrderSequence возвращает имя суточного счётчика, из которого выдан номер на момент now.
func (a *Allocator) OrderSequence(now time.Time) string {
	return orderSequenceName(now.In(a.cfg.Location).Format(dateLayout))
}

func orderSequenceName(day string) string {
	return "order:" + day
}
