package dashboard

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/blob"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// DispatchPrefix — префикс ключей листов отгрузки в хранилище.
const DispatchPrefix = "dispatch/"

var dispatchHeader = []string{"agency", "product", "unit", "total_quantity", "shops"}

// DispatchRow — сколько товара заказать у агентства по всем ожидающим заказам.
type DispatchRow struct {
	AgencyName    string
	ProductName   string
	Unit          string
	TotalQuantity int
	Shops         []string
}

// BuildDispatchSheet суммирует позиции ожидающих заказов по (агентство, товар, единица).
// Строки отсортированы по агентству и товару, магазины в строке — по алфавиту без повторов.
func BuildDispatchSheet(orders []domain.Order) []DispatchRow {
	type rowKey struct{ agency, product, unit string }

	rows := make(map[rowKey]*DispatchRow)
	shops := make(map[rowKey]map[string]struct{})
	for _, order := range orders {
		if order.Status != domain.OrderStatusPending {
			continue
		}
		shopName := strings.TrimSpace(order.ShopName)
		if shopName == "" {
			shopName = UnknownShop
		}
		for _, line := range order.Lines {
			agency := strings.TrimSpace(line.AgencyName)
			if agency == "" {
				agency = UnknownAgency
			}
			key := rowKey{agency: agency, product: line.ProductName, unit: line.Unit}
			row, ok := rows[key]
			if !ok {
				row = &DispatchRow{AgencyName: agency, ProductName: line.ProductName, Unit: line.Unit}
				rows[key] = row
				shops[key] = make(map[string]struct{})
			}
			row.TotalQuantity += line.Quantity
			shops[key][shopName] = struct{}{}
		}
	}

	out := make([]DispatchRow, 0, len(rows))
	for key, row := range rows {
		for shop := range shops[key] {
			row.Shops = append(row.Shops, shop)
		}
		sort.Strings(row.Shops)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgencyName != out[j].AgencyName {
			return out[i].AgencyName < out[j].AgencyName
		}
		if out[i].ProductName != out[j].ProductName {
			return out[i].ProductName < out[j].ProductName
		}
		return out[i].Unit < out[j].Unit
	})
	return out
}

// WriteDispatchCSV пишет лист отгрузки в формате CSV с заголовком.
func WriteDispatchCSV(w io.Writer, rows []DispatchRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dispatchHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.AgencyName,
			row.ProductName,
			row.Unit,
			strconv.Itoa(row.TotalQuantity),
			strings.Join(row.Shops, "; "),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportDispatchSheet собирает лист отгрузки по ожидающим заказам и сохраняет его в хранилище выгрузок.
func (s *Service) ExportDispatchSheet(ctx context.Context) (blob.Info, error) {
	if s.blobs == nil {
		return blob.Info{}, ErrExportDisabled
	}

	orders, err := s.orders.List(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("%w: %w", domain.ErrOrdersUnavailable, err)
	}
	rows := BuildDispatchSheet(orders)

	var buf bytes.Buffer
	if err := WriteDispatchCSV(&buf, rows); err != nil {
		return blob.Info{}, fmt.Errorf("encode dispatch sheet: %w", err)
	}

	now := s.now()
	key := DispatchPrefix + now.Format("20060102T150405Z") + ".csv"
	opts := blob.PutOptions{
		ContentType: "text/csv",
		Metadata: map[string]string{
			"rows":         strconv.Itoa(len(rows)),
			"generated_at": now.Format("2006-01-02T15:04:05Z07:00"),
		},
	}
	info, err := s.blobs.Put(ctx, key, bytes.NewReader(buf.Bytes()), opts)
	if errors.Is(err, blob.ErrExists) {
		// Две выгрузки в одну секунду.
		key = DispatchPrefix + now.Format("20060102T150405Z") + "-" + uuid.NewString()[:8] + ".csv"
		info, err = s.blobs.Put(ctx, key, bytes.NewReader(buf.Bytes()), opts)
	}
	if err != nil {
		return blob.Info{}, fmt.Errorf("store dispatch sheet: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordExport(len(rows))
	}
	s.logger.WithFields(log.Fields{
		"key":  info.Key,
		"rows": len(rows),
	}).Info("dispatch sheet exported")
	return info, nil
}

// ListExports возвращает сохранённые листы отгрузки.
func (s *Service) ListExports(ctx context.Context) ([]blob.Info, error) {
	if s.blobs == nil {
		return nil, ErrExportDisabled
	}
	return s.blobs.List(ctx, DispatchPrefix)
}

// OpenExport открывает лист отгрузки по ключу. Ключи вне DispatchPrefix не отдаются.
func (s *Service) OpenExport(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if s.blobs == nil {
		return blob.Info{}, nil, ErrExportDisabled
	}
	if !strings.HasPrefix(key, DispatchPrefix) {
		return blob.Info{}, nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return s.blobs.Get(ctx, key)
}
