package ordersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dropsync/backend/internal/domain/integration"
	"github.com/dropsync/backend/internal/infrastructure/powerbody"
	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeMappings struct {
	rows       []*integration.KeyMapping
	watermarks map[integration.SyncType]time.Time
	comments   map[string]bool
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{
		watermarks: map[integration.SyncType]time.Time{},
		comments:   map[string]bool{},
	}
}

func (m *fakeMappings) UpsertMapping(_ context.Context, kind integration.MappingKind, localID int64, remoteID string) error {
	for _, row := range m.rows {
		if row.Kind == kind && row.LocalID == localID {
			return nil
		}
	}
	m.rows = append(m.rows, &integration.KeyMapping{Kind: kind, LocalID: localID, RemoteID: remoteID})
	return nil
}

func (m *fakeMappings) UpsertProductMapping(ctx context.Context, localID int64, remoteID, sku string) error {
	for _, row := range m.rows {
		if row.Kind == integration.MappingKindProduct && row.LocalID == localID {
			return nil
		}
	}
	m.rows = append(m.rows, &integration.KeyMapping{
		Kind: integration.MappingKindProduct, LocalID: localID, RemoteID: remoteID, SKU: sku,
	})
	return nil
}

func (m *fakeMappings) LookupByLocal(_ context.Context, kind integration.MappingKind, localID int64) (*integration.KeyMapping, error) {
	for _, row := range m.rows {
		if row.Kind == kind && row.LocalID == localID {
			return row, nil
		}
	}
	return nil, integration.ErrMappingNotFound
}

func (m *fakeMappings) LookupByRemote(_ context.Context, kind integration.MappingKind, remoteID string) (*integration.KeyMapping, error) {
	for _, row := range m.rows {
		if row.Kind == kind && row.RemoteID == remoteID {
			return row, nil
		}
	}
	return nil, integration.ErrMappingNotFound
}

func (m *fakeMappings) LookupProductBySKU(_ context.Context, sku string) (*integration.KeyMapping, error) {
	for _, row := range m.rows {
		if row.Kind == integration.MappingKindProduct && row.SKU == sku {
			return row, nil
		}
	}
	return nil, integration.ErrMappingNotFound
}

func (m *fakeMappings) TouchProductMapping(_ context.Context, sku string, syncedAt time.Time) error {
	for _, row := range m.rows {
		if row.Kind == integration.MappingKindProduct && row.SKU == sku {
			at := syncedAt
			row.LastSyncedAt = &at
		}
	}
	return nil
}

func (m *fakeMappings) GetWatermark(_ context.Context, syncType integration.SyncType) (*integration.SyncWatermark, error) {
	if last, ok := m.watermarks[syncType]; ok {
		return &integration.SyncWatermark{Type: syncType, LastSync: last}, nil
	}
	return &integration.SyncWatermark{Type: syncType, LastSync: time.Now().Add(-24 * time.Hour)}, nil
}

func (m *fakeMappings) SetWatermark(_ context.Context, syncType integration.SyncType, lastSync time.Time) error {
	m.watermarks[syncType] = lastSync
	return nil
}

func (m *fakeMappings) MarkCommentSynced(_ context.Context, direction integration.CommentDirection, commentID string) error {
	m.comments[direction.String()+"|"+commentID] = true
	return nil
}

func (m *fakeMappings) IsCommentSynced(_ context.Context, direction integration.CommentDirection, commentID string) (bool, error) {
	return m.comments[direction.String()+"|"+commentID], nil
}

func (m *fakeMappings) countKind(kind integration.MappingKind) int {
	n := 0
	for _, row := range m.rows {
		if row.Kind == kind {
			n++
		}
	}
	return n
}

type fakeDeadLetters struct {
	records []*integration.DeadLetterRecord
}

func (q *fakeDeadLetters) Record(_ context.Context, entityID string, payload []byte, reason string) (*integration.DeadLetterRecord, error) {
	record := integration.NewDeadLetterRecord(entityID, payload, reason)
	q.records = append(q.records, record)
	return record, nil
}

func (q *fakeDeadLetters) ListPending(_ context.Context) ([]*integration.DeadLetterRecord, error) {
	return q.records, nil
}

func (q *fakeDeadLetters) Claim(_ context.Context, id uuid.UUID) (*integration.DeadLetterRecord, error) {
	for _, r := range q.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, integration.ErrDeadLetterNotFound
}

func (q *fakeDeadLetters) MarkProcessed(_ context.Context, id uuid.UUID) error { return nil }
func (q *fakeDeadLetters) MarkFailed(_ context.Context, id uuid.UUID) error    { return nil }

type fakeShop struct {
	orders       []shopify.Order
	listErr      error
	tagged       []int64
	fulfillments map[int64][]shopify.Fulfillment
	created      []shopify.Fulfillment
	trackingUpds []string
	refunds      []shopify.Refund
	comments     map[int64][]shopify.OrderComment
	addedNotes   []string
}

func newFakeShop(orders ...shopify.Order) *fakeShop {
	return &fakeShop{
		orders:       orders,
		fulfillments: map[int64][]shopify.Fulfillment{},
		comments:     map[int64][]shopify.OrderComment{},
	}
}

func (s *fakeShop) ListOpenOrders(_ context.Context, excludeTag string) ([]shopify.Order, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.orders, nil
}

func (s *fakeShop) TagOrder(_ context.Context, order *shopify.Order, tag string) error {
	s.tagged = append(s.tagged, order.ID)
	return nil
}

func (s *fakeShop) CreateFulfillment(_ context.Context, orderID int64, trackingNumber, trackingCompany string) (*shopify.Fulfillment, error) {
	f := shopify.Fulfillment{ID: int64(len(s.created) + 1), OrderID: orderID, TrackingNumber: trackingNumber, TrackingCompany: trackingCompany}
	s.created = append(s.created, f)
	return &f, nil
}

func (s *fakeShop) ListFulfillments(_ context.Context, orderID int64) ([]shopify.Fulfillment, error) {
	return s.fulfillments[orderID], nil
}

func (s *fakeShop) UpdateFulfillmentTracking(_ context.Context, fulfillmentID int64, trackingNumber, trackingCompany string) error {
	s.trackingUpds = append(s.trackingUpds, fmt.Sprintf("%d:%s", fulfillmentID, trackingNumber))
	return nil
}

func (s *fakeShop) CreateRefund(_ context.Context, orderID int64, refund *shopify.Refund) (*shopify.Refund, error) {
	created := *refund
	created.ID = int64(9000 + len(s.refunds))
	created.OrderID = orderID
	s.refunds = append(s.refunds, created)
	return &created, nil
}

func (s *fakeShop) ListOrderComments(_ context.Context, orderID int64) ([]shopify.OrderComment, error) {
	return s.comments[orderID], nil
}

func (s *fakeShop) AddOrderComment(_ context.Context, orderID int64, sourceCommentID, message string) error {
	s.addedNotes = append(s.addedNotes, fmt.Sprintf("%d:%s:%s", orderID, sourceCommentID, message))
	return nil
}

type fakeSupplier struct {
	createOutcome func(order *powerbody.OrderRequest) (integration.Outcome, error)
	submitted     []*powerbody.OrderRequest
	statuses      map[string]*powerbody.OrderStatus
	refundList    []powerbody.RefundInfo
	commentList   []powerbody.CommentInfo
	inserted      []string
}

func newFakeSupplier() *fakeSupplier {
	return &fakeSupplier{statuses: map[string]*powerbody.OrderStatus{}}
}

func (p *fakeSupplier) CreateOrder(_ context.Context, order *powerbody.OrderRequest) (integration.Outcome, error) {
	p.submitted = append(p.submitted, order)
	if p.createOutcome != nil {
		return p.createOutcome(order)
	}
	return integration.OutcomeSuccess, nil
}

func (p *fakeSupplier) UpdateOrder(_ context.Context, order *powerbody.OrderRequest) (integration.Outcome, error) {
	return integration.OutcomeUpdateSuccess, nil
}

func (p *fakeSupplier) InsertComment(_ context.Context, orderID, text string) (integration.Outcome, error) {
	p.inserted = append(p.inserted, orderID+":"+text)
	return integration.OutcomeSuccess, nil
}

func (p *fakeSupplier) GetOrderStatus(_ context.Context, orderID string) (*powerbody.OrderStatus, error) {
	if status, ok := p.statuses[orderID]; ok {
		return status, nil
	}
	return &powerbody.OrderStatus{ID: orderID, Status: powerbody.OrderStatusPending}, nil
}

func (p *fakeSupplier) GetRefunds(_ context.Context, since time.Time) ([]powerbody.RefundInfo, error) {
	return p.refundList, nil
}

func (p *fakeSupplier) GetComments(_ context.Context, since time.Time) ([]powerbody.CommentInfo, error) {
	return p.commentList, nil
}

func newOrchestrator(shop ShopClient, supplier SupplierClient, mappings *fakeMappings, dlq *fakeDeadLetters) *Orchestrator {
	return New(shop, supplier, mappings, dlq, Config{SyncTag: "pb-synced"}, zap.NewNop())
}

func order(id int64) shopify.Order {
	o := *sampleOrder()
	o.ID = id
	o.Name = fmt.Sprintf("#%d", id)
	return o
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRunSubmitsNewOrders(t *testing.T) {
	shop := newFakeShop(order(1), order(2))
	supplier := newFakeSupplier()
	mappings := newFakeMappings()
	dlq := &fakeDeadLetters{}

	report, err := newOrchestrator(shop, supplier, mappings, dlq).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, mappings.countKind(integration.MappingKindOrder))
	assert.ElementsMatch(t, []int64{1, 2}, shop.tagged)
	assert.Empty(t, dlq.records)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.ExitCode())
	assert.False(t, mappings.watermarks[integration.SyncTypeOrder].IsZero(), "order watermark advanced")
}

func TestRunIsolatesSingleOrderFailure(t *testing.T) {
	orders := []shopify.Order{order(1), order(2), order(3), order(4), order(5)}
	shop := newFakeShop(orders...)
	supplier := newFakeSupplier()
	supplier.createOutcome = func(req *powerbody.OrderRequest) (integration.Outcome, error) {
		if req.ID == "3" {
			return integration.OutcomeFailed,
				fmt.Errorf("%w: after 3 attempts", integration.ErrRetryExhausted)
		}
		return integration.OutcomeSuccess, nil
	}
	mappings := newFakeMappings()
	dlq := &fakeDeadLetters{}

	report, err := newOrchestrator(shop, supplier, mappings, dlq).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, mappings.countKind(integration.MappingKindOrder))
	require.Len(t, dlq.records, 1)
	assert.Equal(t, "3", dlq.records[0].EntityID)

	// The dead letter carries the full request body needed to retry
	var stored powerbody.OrderRequest
	require.NoError(t, json.Unmarshal(dlq.records[0].Payload, &stored))
	assert.Equal(t, "3", stored.ID)
	assert.NotEmpty(t, stored.Products)

	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.DeadLettered)
	assert.Equal(t, 1, report.ExitCode())
}

func TestRunAlreadyExistsRecordsMappingWithoutDeadLetter(t *testing.T) {
	shop := newFakeShop(order(7))
	supplier := newFakeSupplier()
	supplier.createOutcome = func(*powerbody.OrderRequest) (integration.Outcome, error) {
		return integration.OutcomeAlreadyExists, nil
	}
	mappings := newFakeMappings()
	dlq := &fakeDeadLetters{}

	report, err := newOrchestrator(shop, supplier, mappings, dlq).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, mappings.countKind(integration.MappingKindOrder))
	assert.Empty(t, dlq.records)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.ExitCode())
}

func TestRunInvalidOrderDeadLettersOriginalPayload(t *testing.T) {
	bad := order(9)
	bad.LineItems = nil
	shop := newFakeShop(bad)
	supplier := newFakeSupplier()
	mappings := newFakeMappings()
	dlq := &fakeDeadLetters{}

	report, err := newOrchestrator(shop, supplier, mappings, dlq).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, supplier.submitted, "invalid order never reaches the supplier")
	require.Len(t, dlq.records, 1)
	assert.Contains(t, dlq.records[0].Reason, "no line items")
	assert.Equal(t, 1, report.DeadLettered)
}

func TestRunTaggedUnmappedOrderNotResubmitted(t *testing.T) {
	tagged := order(4)
	tagged.Tags = "pb-synced"
	shop := newFakeShop(tagged)
	supplier := newFakeSupplier()
	mappings := newFakeMappings()
	dlq := &fakeDeadLetters{}

	report, err := newOrchestrator(shop, supplier, mappings, dlq).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, supplier.submitted)
	assert.Empty(t, dlq.records)
	assert.Equal(t, 1, report.Skipped)
}

func TestRunPollsMappedOrderAndCreatesFulfillment(t *testing.T) {
	o := order(11)
	shop := newFakeShop(o)
	supplier := newFakeSupplier()
	supplier.statuses["11"] = &powerbody.OrderStatus{
		ID: "11", Status: powerbody.OrderStatusDispatched,
		TrackingNumber: "TRK-9", Carrier: "DPD",
	}
	mappings := newFakeMappings()
	require.NoError(t, mappings.UpsertMapping(context.Background(), integration.MappingKindOrder, 11, "11"))
	dlq := &fakeDeadLetters{}

	report, err := newOrchestrator(shop, supplier, mappings, dlq).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, supplier.submitted, "mapped orders are polled, not resubmitted")
	require.Len(t, shop.created, 1)
	assert.Equal(t, "TRK-9", shop.created[0].TrackingNumber)
	assert.Equal(t, 1, report.Succeeded)
}

func TestRunUpdatesChangedTracking(t *testing.T) {
	o := order(12)
	shop := newFakeShop(o)
	shop.fulfillments[12] = []shopify.Fulfillment{{ID: 501, TrackingNumber: "OLD"}}
	supplier := newFakeSupplier()
	supplier.statuses["12"] = &powerbody.OrderStatus{
		ID: "12", Status: powerbody.OrderStatusDispatched, TrackingNumber: "NEW", Carrier: "DPD",
	}
	mappings := newFakeMappings()
	require.NoError(t, mappings.UpsertMapping(context.Background(), integration.MappingKindOrder, 12, "12"))

	_, err := newOrchestrator(shop, supplier, mappings, &fakeDeadLetters{}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, shop.created)
	assert.Equal(t, []string{"501:NEW"}, shop.trackingUpds)
}

func TestRunSyncsRefundsOnce(t *testing.T) {
	shop := newFakeShop()
	supplier := newFakeSupplier()
	supplier.refundList = []powerbody.RefundInfo{
		{ID: "301", OrderID: "11", Amount: d("4.50"), Reason: "damaged item"},
	}
	mappings := newFakeMappings()
	dlq := &fakeDeadLetters{}
	orch := newOrchestrator(shop, supplier, mappings, dlq)

	_, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, shop.refunds, 1)
	assert.Equal(t, int64(11), shop.refunds[0].OrderID)
	assert.Equal(t, 1, mappings.countKind(integration.MappingKindRefund))

	// The supplier still reports the refund next pass; the mapping skips it
	_, err = orch.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, shop.refunds, 1)
}

func TestRunForwardsCommentsBothWaysOnce(t *testing.T) {
	o := order(21)
	shop := newFakeShop(o)
	shop.comments[21] = []shopify.OrderComment{
		{ID: 601, Key: "note", Message: "please gift-wrap"},
		{ID: 602, Key: "c_88", Message: "already forwarded from supplier"},
	}
	supplier := newFakeSupplier()
	supplier.commentList = []powerbody.CommentInfo{
		{ID: "88", OrderID: "21", Text: "order packed"},
	}
	mappings := newFakeMappings()
	require.NoError(t, mappings.UpsertMapping(context.Background(), integration.MappingKindOrder, 21, "21"))
	orch := newOrchestrator(shop, supplier, mappings, &fakeDeadLetters{})

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"21:88:order packed"}, shop.addedNotes)
	assert.Equal(t, []string{"21:please gift-wrap"}, supplier.inserted)

	// Second pass resends nothing
	_, err = orch.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, shop.addedNotes, 1)
	assert.Len(t, supplier.inserted, 1)
}

func TestCandidatesPreferBatchFile(t *testing.T) {
	batch := []shopify.Order{order(31), order(32)}
	data, err := json.Marshal(batch)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	shop := newFakeShop()
	shop.listErr = errors.New("live listing must not be called")
	supplier := newFakeSupplier()
	mappings := newFakeMappings()

	orch := New(shop, supplier, mappings, &fakeDeadLetters{},
		Config{SyncTag: "pb-synced", OrderBatchFile: path}, zap.NewNop())

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
}

func TestCandidatesFallBackToLiveListing(t *testing.T) {
	shop := newFakeShop(order(41))
	supplier := newFakeSupplier()
	mappings := newFakeMappings()

	orch := New(shop, supplier, mappings, &fakeDeadLetters{},
		Config{SyncTag: "pb-synced", OrderBatchFile: "/nonexistent/orders.json"}, zap.NewNop())

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}
