package feed

import (
	"strings"
	"time"

	"github.com/xelth-com/f8tracker/internal/calc"
	"github.com/xelth-com/f8tracker/internal/models"
)

const utf8BOM = "\ufeff"

// Parser turns the published sheet into orders with derived fields filled.
type Parser struct {
	mapper *Mapper
	now    func() time.Time
}

// NewParser creates a parser. A nil mapper uses the built-in header table;
// a nil clock uses time.Now.
func NewParser(mapper *Mapper, now func() time.Time) *Parser {
	if mapper == nil {
		mapper = defaultMapper
	}
	if now == nil {
		now = time.Now
	}
	return &Parser{mapper: mapper, now: now}
}

// Parse converts CSV text into orders, one per data line, in feed order.
// Malformed lines never abort the parse: missing values read as "".
func (p *Parser) Parse(text string) []models.Order {
	header, rows := ParseRows(text)
	if len(header) == 0 {
		return nil
	}

	keys := make([]string, len(header))
	for i, label := range header {
		keys[i] = p.mapper.Key(label)
	}

	now := p.now()
	orders := make([]models.Order, 0, len(rows))
	for _, values := range rows {
		var o models.Order
		for i, key := range keys {
			v := ""
			if i < len(values) {
				v = values[i]
			}
			o.Set(key, v)
		}
		calc.ComputeDerived(&o, now)
		orders = append(orders, o)
	}
	return orders
}

// ParseCSV parses text with mapper against the wall clock.
func ParseCSV(text string, mapper *Mapper) []models.Order {
	return NewParser(mapper, nil).Parse(text)
}

// ParseRows splits text into the header row and the data rows, skipping
// blank lines.
func ParseRows(text string) (header []string, rows [][]string) {
	text = strings.TrimPrefix(text, utf8BOM)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if header == nil {
			header = ParseLine(line)
			continue
		}
		rows = append(rows, ParseLine(line))
	}
	return header, rows
}

// ParseLine splits one CSV line. A double quote always toggles the quoted
// state and is dropped; commas inside quotes are kept. Fields are trimmed.
func ParseLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}
