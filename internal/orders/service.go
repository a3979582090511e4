package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-erp/atelier-erp/internal/catalog"
	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filters ListFilters) ([]Summary, int, error)
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

// TxRepository exposes transactional operations. Material rows are locked
// and flipped in the same transaction as the order rows so the status
// invariant cannot be observed half-applied.
type TxRepository interface {
	GetOrder(ctx context.Context, id int64) (Order, error)
	InsertOrder(ctx context.Context, order Order) (int64, error)
	InsertItems(ctx context.Context, orderID int64, items []Item) error
	UpdateOrderAmount(ctx context.Context, id int64, total float64, version int64) error
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus, version int64) error
	ItemsForOrder(ctx context.Context, orderID int64) ([]Item, error)
	LockItems(ctx context.Context, itemIDs []int64) ([]Item, error)
	UpdateItemQty(ctx context.Context, itemID int64, qty, expectedPrice float64) error
	UpdateItemStatus(ctx context.Context, itemIDs []int64, status ItemStatus) error
	DeleteItems(ctx context.Context, orderID int64, itemIDs []int64) error
	LockMaterials(ctx context.Context, materialIDs []int64) ([]MaterialSnapshot, error)
	UpdateMaterialStatus(ctx context.Context, materialIDs []int64, status catalog.MaterialStatus) error
}

// CachePort invalidates the catalog snapshot after material status flips.
type CachePort interface {
	Invalidate(ctx context.Context)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates purchase-order fulfillment.
type Service struct {
	repo   RepositoryPort
	cache  CachePort
	audit  AuditPort
	events EventHandler
	logger *slog.Logger
}

// NewService constructs the fulfillment service. cache, audit and events may
// be nil.
func NewService(repo RepositoryPort, cache CachePort, audit AuditPort, events EventHandler, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, events: events, logger: logger}
}

// CreateOrder opens a draft purchase order over the selected materials. Every
// material must still be unordered when the transaction locks it; the expected
// price is copied from the material's stored total price at this moment and
// never follows later price edits.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if req.SupplierName == "" {
		return Order{}, fmt.Errorf("%w: supplier name required", ErrValidation)
	}
	if len(req.MaterialIDs) == 0 {
		return Order{}, fmt.Errorf("%w: select at least one material", ErrValidation)
	}

	number, err := s.repo.GenerateNumber(ctx, time.Now())
	if err != nil {
		return Order{}, fmt.Errorf("orders: generate number: %w", err)
	}

	var orderID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		materials, err := tx.LockMaterials(ctx, req.MaterialIDs)
		if err != nil {
			return err
		}
		if len(materials) != len(req.MaterialIDs) {
			return fmt.Errorf("%w: unknown material in selection", ErrNotFound)
		}
		for _, m := range materials {
			if !m.Status.Pending() {
				return fmt.Errorf("%w: material %q is already %s", ErrInvalidState, m.Name, m.Status)
			}
		}

		order := Order{Number: number, SupplierName: req.SupplierName, Status: StatusDraft}
		items := make([]Item, 0, len(materials))
		for _, m := range materials {
			items = append(items, Item{
				MaterialID:    m.ID,
				ProductID:     m.ProductID,
				ProjectID:     m.ProjectID,
				Qty:           m.Qty,
				Unit:          m.Unit,
				ExpectedPrice: m.TotalPrice,
				Status:        ItemPending,
			})
		}
		order.TotalAmount = SumItems(items)

		orderID, err = tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, orderID, items); err != nil {
			return err
		}
		return tx.UpdateMaterialStatus(ctx, req.MaterialIDs, catalog.MaterialOrdered)
	})
	if err != nil {
		return Order{}, err
	}

	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, "ORDER_CREATE", orderID, map[string]any{"number": number, "supplier": req.SupplierName, "materials": len(req.MaterialIDs)})
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	s.dispatchCreated(ctx, order)
	return order, nil
}

// MarkSent moves a draft order to SENT. Item edits and deletes are closed off
// from here on.
func (s *Service) MarkSent(ctx context.Context, orderID int64) (Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status != StatusDraft {
		return Order{}, fmt.Errorf("%w: only draft orders can be sent", ErrInvalidState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrderStatus(ctx, orderID, StatusSent, order.Version)
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, "ORDER_SEND", orderID, map[string]any{"number": order.Number})
	return s.repo.Get(ctx, orderID)
}

// EditQuantity changes one item's quantity on a draft order. The expected
// price keeps its snapshot per-unit rate, and the order total is re-summed in
// full from all current items.
func (s *Service) EditQuantity(ctx context.Context, orderID, itemID int64, qty float64) (Order, error) {
	if qty <= 0 {
		return Order{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status != StatusDraft {
		return Order{}, fmt.Errorf("%w: items are editable only while the order is a draft", ErrInvalidState)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items, err := tx.LockItems(ctx, []int64{itemID})
		if err != nil {
			return err
		}
		if len(items) == 0 || items[0].OrderID != orderID {
			return fmt.Errorf("%w: item does not belong to this order", ErrNotFound)
		}
		item := items[0]
		expected := item.ExpectedPrice
		if item.Qty > 0 {
			expected = item.ExpectedPrice / item.Qty * qty
		}
		if err := tx.UpdateItemQty(ctx, itemID, qty, expected); err != nil {
			return err
		}
		current, err := tx.ItemsForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		return tx.UpdateOrderAmount(ctx, orderID, SumItems(current), order.Version)
	})
	if err != nil {
		return Order{}, err
	}
	return s.repo.Get(ctx, orderID)
}

// DeleteItems removes items from a draft order and releases their materials
// back to NOT_ORDERED. An emptied order stays a valid draft.
func (s *Service) DeleteItems(ctx context.Context, orderID int64, itemIDs []int64) (Order, error) {
	if len(itemIDs) == 0 {
		return Order{}, fmt.Errorf("%w: select at least one item", ErrValidation)
	}
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status != StatusDraft {
		return Order{}, fmt.Errorf("%w: items are deletable only while the order is a draft", ErrInvalidState)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items, err := tx.LockItems(ctx, itemIDs)
		if err != nil {
			return err
		}
		if len(items) != len(itemIDs) {
			return fmt.Errorf("%w: unknown item in selection", ErrNotFound)
		}
		materialIDs := make([]int64, 0, len(items))
		for _, item := range items {
			if item.OrderID != orderID {
				return fmt.Errorf("%w: item does not belong to this order", ErrNotFound)
			}
			materialIDs = append(materialIDs, item.MaterialID)
		}
		if err := tx.DeleteItems(ctx, orderID, itemIDs); err != nil {
			return err
		}
		if err := tx.UpdateMaterialStatus(ctx, materialIDs, catalog.MaterialNotOrdered); err != nil {
			return err
		}
		remaining, err := tx.ItemsForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		return tx.UpdateOrderAmount(ctx, orderID, SumItems(remaining), order.Version)
	})
	if err != nil {
		return Order{}, err
	}

	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, "ORDER_DELETE_ITEMS", orderID, map[string]any{"number": order.Number, "items": len(itemIDs)})
	return s.repo.Get(ctx, orderID)
}

// ReceiveItems marks items and their materials RECEIVED. Receiving an
// already-received item is a no-op, so retried deliveries converge on the
// same state. It returns the IDs of items actually flipped.
func (s *Service) ReceiveItems(ctx context.Context, itemIDs []int64) ([]int64, error) {
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: select at least one item", ErrValidation)
	}

	var flipped []int64
	var orderIDs []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items, err := tx.LockItems(ctx, itemIDs)
		if err != nil {
			return err
		}
		if len(items) != len(itemIDs) {
			return fmt.Errorf("%w: unknown item in selection", ErrNotFound)
		}

		var pendingIDs, materialIDs []int64
		orderSet := make(map[int64]bool)
		for _, item := range items {
			if !orderSet[item.OrderID] {
				orderSet[item.OrderID] = true
				orderIDs = append(orderIDs, item.OrderID)
			}
			if item.Status != ItemPending {
				continue
			}
			pendingIDs = append(pendingIDs, item.ID)
			materialIDs = append(materialIDs, item.MaterialID)
		}
		if len(pendingIDs) > 0 {
			if err := tx.UpdateItemStatus(ctx, pendingIDs, ItemReceived); err != nil {
				return err
			}
			if err := tx.UpdateMaterialStatus(ctx, materialIDs, catalog.MaterialReceived); err != nil {
				return err
			}
		}
		flipped = pendingIDs

		for _, orderID := range orderIDs {
			order, err := tx.GetOrder(ctx, orderID)
			if err != nil {
				return err
			}
			all, err := tx.ItemsForOrder(ctx, orderID)
			if err != nil {
				return err
			}
			next := ReceiptStatus(order.Status, all)
			if next == order.Status {
				continue
			}
			if err := tx.UpdateOrderStatus(ctx, orderID, next, order.Version); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(flipped) > 0 {
		s.invalidateCatalog(ctx)
		s.recordAudit(ctx, "ORDER_RECEIVE", orderIDs[0], map[string]any{"items": len(flipped)})
		s.dispatchReceived(ctx, orderIDs, flipped)
	}
	return flipped, nil
}

// MarkInStock declares materials in stock without any order. Only unordered
// materials may take this path.
func (s *Service) MarkInStock(ctx context.Context, materialIDs []int64) error {
	if len(materialIDs) == 0 {
		return fmt.Errorf("%w: select at least one material", ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		materials, err := tx.LockMaterials(ctx, materialIDs)
		if err != nil {
			return err
		}
		if len(materials) != len(materialIDs) {
			return fmt.Errorf("%w: unknown material in selection", ErrNotFound)
		}
		for _, m := range materials {
			if !m.Status.Pending() {
				return fmt.Errorf("%w: material %q is already %s", ErrInvalidState, m.Name, m.Status)
			}
		}
		return tx.UpdateMaterialStatus(ctx, materialIDs, catalog.MaterialInStock)
	})
	if err != nil {
		return err
	}
	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, "MATERIAL_IN_STOCK", 0, map[string]any{"materials": len(materialIDs)})
	return nil
}

// Get loads one order with its items.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, error) {
	return s.repo.Get(ctx, orderID)
}

// List returns order summaries.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Summary, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("ORDER:%d", entityID)))
	meta["ref"] = refID.String()
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "orders", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func (s *Service) dispatchCreated(ctx context.Context, order Order) {
	if s.events == nil {
		return
	}
	evt := OrderCreatedEvent{
		ID:           order.ID,
		Number:       order.Number,
		SupplierName: order.SupplierName,
		TotalAmount:  order.TotalAmount,
		ItemCount:    len(order.Items),
		CreatedAt:    time.Now(),
	}
	if err := s.events.HandleOrderCreated(ctx, evt); err != nil && s.logger != nil {
		s.logger.Warn("order created event", slog.Int64("order_id", order.ID), slog.Any("error", err))
	}
}

func (s *Service) dispatchReceived(ctx context.Context, orderIDs, itemIDs []int64) {
	if s.events == nil {
		return
	}
	evt := ItemsReceivedEvent{OrderIDs: orderIDs, ItemIDs: itemIDs, ReceivedAt: time.Now()}
	if err := s.events.HandleItemsReceived(ctx, evt); err != nil && s.logger != nil {
		s.logger.Warn("items received event", slog.Any("error", err))
	}
}
