// Package orders owns the sales-order lifecycle: creation from a cart and
// the legal status transitions through the warehouse flow.
package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/distriflow/distriflow/internal/shared"
)

var (
	// ErrInvalidTransition signals a target status not reachable from the
	// current one (skipped step or backward move).
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrOrderLocked signals a mutation attempt on a terminal order.
	ErrOrderLocked = errors.New("order is in a terminal state")
)

// DefaultTaxRate is the IVA applied when no rate is configured.
const DefaultTaxRate = 0.12

// Service provides business logic for order operations.
type Service struct {
	repo    Repository
	taxRate float64
}

// NewService constructs an order service. A non-positive taxRate falls back
// to DefaultTaxRate.
func NewService(repo Repository, taxRate float64) *Service {
	if taxRate <= 0 {
		taxRate = DefaultTaxRate
	}
	return &Service{repo: repo, taxRate: taxRate}
}

// Create builds an order from cart lines, computing totals server-side.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, actor shared.Actor) (*Order, error) {
	var subtotal, discountTotal float64
	lines := make([]OrderLine, 0, len(req.Lines))
	for i, lr := range req.Lines {
		final := lr.FinalPrice
		if final == 0 {
			final = lr.UnitPrice
		}
		if final > lr.UnitPrice {
			return nil, fmt.Errorf("line %d: final price above unit price", i+1)
		}
		lineSubtotal := round2(lr.Quantity * final)
		subtotal += round2(lr.Quantity * lr.UnitPrice)
		discountTotal += round2(lr.Quantity * (lr.UnitPrice - final))

		line := OrderLine{
			ProductID:    lr.ProductID,
			Description:  lr.Description,
			Quantity:     lr.Quantity,
			UnitPrice:    lr.UnitPrice,
			FinalPrice:   final,
			LineSubtotal: lineSubtotal,
			LineOrder:    lr.LineOrder,
		}
		if line.LineOrder == 0 {
			line.LineOrder = i + 1
		}
		lines = append(lines, line)
	}

	taxTotal := round2((subtotal - discountTotal) * s.taxRate)
	total := round2(subtotal - discountTotal + taxTotal)
	if total < 0 {
		return nil, fmt.Errorf("order total may not be negative, got %.2f", total)
	}

	order := Order{
		ClientID:         req.ClientID,
		Status:           StatusPendiente,
		PaymentCondition: req.PaymentCondition,
		Subtotal:         round2(subtotal),
		DiscountTotal:    round2(discountTotal),
		TaxTotal:         taxTotal,
		Total:            total,
		Notes:            req.Notes,
		CreatedBy:        actor.ID,
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		// Numbering happens inside the transaction: a rolled-back create
		// releases its reserved sequence slot too.
		docNumber, err := repo.GenerateNumber(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		order.DocNumber = docNumber

		id, err := repo.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		orderID = id

		for _, line := range lines {
			line.OrderID = orderID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}

		return repo.UpdateStatus(ctx, orderID, StatusPendiente, actor.ID, string(actor.Role))
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, orderID)
}

// ChangeStatus validates and applies a status transition, appending the
// audit trail entry in the same transaction.
func (s *Service) ChangeStatus(ctx context.Context, id int64, target OrderStatus, actor shared.Actor) (*Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if existing.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrOrderLocked, existing.Status)
	}
	if !existing.Status.CanTransition(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, existing.Status, target)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.UpdateStatus(ctx, id, target, actor.ID, string(actor.Role))
	})
	if err != nil {
		return nil, fmt.Errorf("change status: %w", err)
	}

	return s.repo.Get(ctx, id)
}

// Get retrieves one order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// History returns the order's status audit trail.
func (s *Service) History(ctx context.Context, id int64) ([]StatusChange, error) {
	return s.repo.StatusHistory(ctx, id)
}

// List returns a filtered, paginated order listing.
func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]OrderWithDetails, int, error) {
	return s.repo.List(ctx, req)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
