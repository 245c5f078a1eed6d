package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/internal/repo"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/pagination"
)

func (s *service) GetOrder(ctx context.Context, scope repo.Scope, id uuid.UUID) (*OrderDTO, error) {
	return s.load(ctx, scope, id)
}

// ListOrders pages through orders newest first, each with its lines.
func (s *service) ListOrders(ctx context.Context, scope repo.Scope, filter ListFilter, params pagination.Params) (*OrderList, error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type filter")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	r := s.repoFor(scope)
	rows, err := r.ListOrders(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})

	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	lines, err := r.FindLinesFor(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order lines")
	}
	byOrder := make(map[uuid.UUID][]models.OrderLine, len(rows))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}

	out := &OrderList{Orders: make([]OrderDTO, len(rows)), NextCursor: next}
	for i := range rows {
		out.Orders[i] = NewOrderDTO(&rows[i], byOrder[rows[i].ID])
	}
	return out, nil
}

// History returns the status changes of an order, oldest first.
func (s *service) History(ctx context.Context, scope repo.Scope, orderID uuid.UUID) ([]HistoryDTO, error) {
	r := s.repoFor(scope)
	if _, err := r.FindOrder(ctx, orderID); err != nil {
		return nil, wrapDB(err, "load order")
	}
	rows, err := r.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order history")
	}
	out := make([]HistoryDTO, len(rows))
	for i := range rows {
		out[i] = NewHistoryDTO(&rows[i])
	}
	return out, nil
}

func (s *service) Fulfillments(ctx context.Context, scope repo.Scope, orderID uuid.UUID) ([]FulfillmentDTO, error) {
	r := s.repoFor(scope)
	if _, err := r.FindOrder(ctx, orderID); err != nil {
		return nil, wrapDB(err, "load order")
	}
	rows, err := r.ListFulfillments(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fulfillments")
	}
	out := make([]FulfillmentDTO, len(rows))
	for i := range rows {
		out[i] = NewFulfillmentDTO(&rows[i])
	}
	return out, nil
}

// FulfillmentState derives unfulfilled, partially_fulfilled or fulfilled from
// the order's lines.
func (s *service) FulfillmentState(ctx context.Context, scope repo.Scope, orderID uuid.UUID) (enums.OrderFulfillmentState, error) {
	r := s.repoFor(scope)
	if _, err := r.FindOrder(ctx, orderID); err != nil {
		return "", wrapDB(err, "load order")
	}
	lines, err := r.FindLines(ctx, orderID)
	if err != nil {
		return "", wrapDB(err, "load order lines")
	}
	return FulfillmentState(progressOf(lines)), nil
}
