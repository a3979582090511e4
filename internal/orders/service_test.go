package orders

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

type memoryRepo struct {
	orders    map[int64]Order
	items     map[int64]Item
	materials map[int64]MaterialSnapshot
	nextOrder int64
	nextItem  int64
	numberSeq int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(materials ...MaterialSnapshot) *memoryRepo {
	repo := &memoryRepo{
		orders:    make(map[int64]Order),
		items:     make(map[int64]Item),
		materials: make(map[int64]MaterialSnapshot),
	}
	for _, m := range materials {
		repo.materials[m.ID] = m
	}
	return repo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	order.Items = r.itemsFor(id)
	return order, nil
}

func (r *memoryRepo) List(ctx context.Context, filters ListFilters) ([]Summary, int, error) {
	var out []Summary
	for id := int64(1); id <= r.nextOrder; id++ {
		order, ok := r.orders[id]
		if !ok {
			continue
		}
		if filters.SupplierName != "" && order.SupplierName != filters.SupplierName {
			continue
		}
		if filters.Status != "" && order.Status != filters.Status {
			continue
		}
		out = append(out, Summary{ID: order.ID, Number: order.Number, SupplierName: order.SupplierName,
			Status: order.Status, TotalAmount: order.TotalAmount, ItemCount: len(r.itemsFor(id))})
	}
	return out, len(out), nil
}

func (r *memoryRepo) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	r.numberSeq++
	return fmt.Sprintf("PO-%s-%04d", date.Format("0601"), r.numberSeq), nil
}

func (r *memoryRepo) itemsFor(orderID int64) []Item {
	var out []Item
	for id := int64(1); id <= r.nextItem; id++ {
		if item, ok := r.items[id]; ok && item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out
}

func (tx *memoryTx) GetOrder(ctx context.Context, id int64) (Order, error) {
	order, ok := tx.repo.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return order, nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, order Order) (int64, error) {
	tx.repo.nextOrder++
	order.ID = tx.repo.nextOrder
	order.Version = 1
	tx.repo.orders[order.ID] = order
	return order.ID, nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, orderID int64, items []Item) error {
	for _, item := range items {
		tx.repo.nextItem++
		item.ID = tx.repo.nextItem
		item.OrderID = orderID
		tx.repo.items[item.ID] = item
	}
	return nil
}

func (tx *memoryTx) UpdateOrderAmount(ctx context.Context, id int64, total float64, version int64) error {
	order, ok := tx.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	if order.Version != version {
		return ErrStaleWrite
	}
	order.TotalAmount = total
	order.Version++
	tx.repo.orders[id] = order
	return nil
}

func (tx *memoryTx) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus, version int64) error {
	order, ok := tx.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	if order.Version != version {
		return ErrStaleWrite
	}
	order.Status = status
	order.Version++
	tx.repo.orders[id] = order
	return nil
}

func (tx *memoryTx) ItemsForOrder(ctx context.Context, orderID int64) ([]Item, error) {
	return tx.repo.itemsFor(orderID), nil
}

func (tx *memoryTx) LockItems(ctx context.Context, itemIDs []int64) ([]Item, error) {
	var out []Item
	for _, id := range itemIDs {
		if item, ok := tx.repo.items[id]; ok {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) UpdateItemQty(ctx context.Context, itemID int64, qty, expectedPrice float64) error {
	item, ok := tx.repo.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.Qty = qty
	item.ExpectedPrice = expectedPrice
	tx.repo.items[itemID] = item
	return nil
}

func (tx *memoryTx) UpdateItemStatus(ctx context.Context, itemIDs []int64, status ItemStatus) error {
	for _, id := range itemIDs {
		if item, ok := tx.repo.items[id]; ok {
			item.Status = status
			tx.repo.items[id] = item
		}
	}
	return nil
}

func (tx *memoryTx) DeleteItems(ctx context.Context, orderID int64, itemIDs []int64) error {
	for _, id := range itemIDs {
		if item, ok := tx.repo.items[id]; ok && item.OrderID == orderID {
			delete(tx.repo.items, id)
		}
	}
	return nil
}

func (tx *memoryTx) LockMaterials(ctx context.Context, materialIDs []int64) ([]MaterialSnapshot, error) {
	var out []MaterialSnapshot
	for _, id := range materialIDs {
		if m, ok := tx.repo.materials[id]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) UpdateMaterialStatus(ctx context.Context, materialIDs []int64, status catalog.MaterialStatus) error {
	for _, id := range materialIDs {
		if m, ok := tx.repo.materials[id]; ok {
			m.Status = status
			tx.repo.materials[id] = m
		}
	}
	return nil
}

func fixtureMaterials() []MaterialSnapshot {
	return []MaterialSnapshot{
		{ID: 1, ProductID: 10, ProjectID: 1, Name: "MDF 18mm", Qty: 5, Unit: "sheet", TotalPrice: 10, Status: catalog.MaterialNotOrdered},
		{ID: 2, ProductID: 10, ProjectID: 1, Name: "Hinges", Qty: 12, Unit: "pcs", TotalPrice: 20, Status: catalog.MaterialNotOrdered},
		{ID: 3, ProductID: 11, ProjectID: 1, Name: "Worktop", Qty: 1, Unit: "pcs", TotalPrice: 70, Status: catalog.MaterialNotOrdered},
		{ID: 4, ProductID: 11, ProjectID: 1, Name: "Edging", Qty: 30, Unit: "m", TotalPrice: 15, Status: catalog.MaterialNotOrdered},
	}
}

func TestCreateOrderSumsExpectedPrices(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SupplierName: "WoodHouse",
		MaterialIDs:  []int64{1, 2, 3},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, order.Status)
	require.NotEmpty(t, order.Number)
	require.Len(t, order.Items, 3)
	require.InDelta(t, 100.0, order.TotalAmount, 0.0001)

	for _, id := range []int64{1, 2, 3} {
		require.Equal(t, catalog.MaterialOrdered, repo.materials[id].Status)
	}
	require.Equal(t, catalog.MaterialNotOrdered, repo.materials[4].Status)
}

func TestCreateOrderRejectsEmptySelection(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{SupplierName: "WoodHouse"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateOrderRejectsOrderedMaterial(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1}})
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "Hafele", MaterialIDs: []int64{1, 2}})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	// The failed order must not have touched material 2.
	require.Equal(t, catalog.MaterialNotOrdered, repo.materials[2].Status)
}

func TestExpectedPriceIsSnapshot(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1}})
	require.NoError(t, err)

	m := repo.materials[1]
	m.TotalPrice = 999
	repo.materials[1] = m

	reloaded, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, reloaded.Items[0].ExpectedPrice, 0.0001)
	require.InDelta(t, 10.0, reloaded.TotalAmount, 0.0001)
}

func TestDeleteItemsResums(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1, 2, 3}})
	require.NoError(t, err)
	require.InDelta(t, 100.0, order.TotalAmount, 0.0001)

	var twentyItem Item
	for _, item := range order.Items {
		if item.MaterialID == 2 {
			twentyItem = item
		}
	}
	require.NotZero(t, twentyItem.ID)

	updated, err := svc.DeleteItems(ctx, order.ID, []int64{twentyItem.ID})
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	require.InDelta(t, 80.0, updated.TotalAmount, 0.0001)
	// The released material is orderable again.
	require.Equal(t, catalog.MaterialNotOrdered, repo.materials[2].Status)
}

func TestDeleteAllItemsKeepsDraft(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1, 2}})
	require.NoError(t, err)

	ids := []int64{order.Items[0].ID, order.Items[1].ID}
	updated, err := svc.DeleteItems(ctx, order.ID, ids)
	require.NoError(t, err)
	require.Empty(t, updated.Items)
	require.Equal(t, StatusDraft, updated.Status)
	require.InDelta(t, 0.0, updated.TotalAmount, 0.0001)
}

func TestEditQuantityResums(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1, 2}})
	require.NoError(t, err)

	// Material 1: qty 5 at total 10, so 2 per unit. Doubling the quantity
	// doubles the snapshot price.
	item := order.Items[0]
	require.Equal(t, int64(1), item.MaterialID)
	updated, err := svc.EditQuantity(ctx, order.ID, item.ID, 10)
	require.NoError(t, err)
	require.InDelta(t, 20.0, updated.Items[0].ExpectedPrice, 0.0001)
	require.InDelta(t, 40.0, updated.TotalAmount, 0.0001)
}

func TestEditQuantityRequiresDraft(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1}})
	require.NoError(t, err)
	order, err = svc.MarkSent(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, order.Status)

	_, err = svc.EditQuantity(ctx, order.ID, order.Items[0].ID, 3)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.DeleteItems(ctx, order.ID, []int64{order.Items[0].ID})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestMarkSentRequiresDraft(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1}})
	require.NoError(t, err)
	_, err = svc.MarkSent(ctx, order.ID)
	require.NoError(t, err)
	_, err = svc.MarkSent(ctx, order.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestReceiveWalksOrderStatus(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1, 2, 3, 4}})
	require.NoError(t, err)
	order, err = svc.MarkSent(ctx, order.ID)
	require.NoError(t, err)

	// All but one received: partially received.
	firstThree := []int64{order.Items[0].ID, order.Items[1].ID, order.Items[2].ID}
	flipped, err := svc.ReceiveItems(ctx, firstThree)
	require.NoError(t, err)
	require.Len(t, flipped, 3)

	order, err = svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReceived, order.Status)
	require.Equal(t, catalog.MaterialReceived, repo.materials[1].Status)
	require.Equal(t, catalog.MaterialOrdered, repo.materials[4].Status)

	// Last one: fully received.
	_, err = svc.ReceiveItems(ctx, []int64{order.Items[3].ID})
	require.NoError(t, err)
	order, err = svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, order.Status)
	require.Equal(t, catalog.MaterialReceived, repo.materials[4].Status)
}

func TestReceiveIsIdempotent(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1, 2}})
	require.NoError(t, err)
	order, err = svc.MarkSent(ctx, order.ID)
	require.NoError(t, err)

	ids := []int64{order.Items[0].ID}
	flipped, err := svc.ReceiveItems(ctx, ids)
	require.NoError(t, err)
	require.Equal(t, ids, flipped)

	once, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)

	// Receiving the same item again is a no-op, not an error.
	flipped, err = svc.ReceiveItems(ctx, ids)
	require.NoError(t, err)
	require.Empty(t, flipped)

	twice, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestMarkInStock(t *testing.T) {
	repo := newMemoryRepo(fixtureMaterials()...)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.MarkInStock(ctx, []int64{4}))
	require.Equal(t, catalog.MaterialInStock, repo.materials[4].Status)

	// A terminal material cannot take the path twice.
	err := svc.MarkInStock(ctx, []int64{4})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// Ordered materials cannot be declared in stock.
	_, err = svc.CreateOrder(ctx, CreateOrderRequest{SupplierName: "WoodHouse", MaterialIDs: []int64{1}})
	require.NoError(t, err)
	err = svc.MarkInStock(ctx, []int64{1})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
