package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lensworks/lensworks/internal/sales/customers"
	"github.com/lensworks/lensworks/internal/sales/lifecycle"
	"github.com/lensworks/lensworks/internal/sales/pricing"
	"github.com/lensworks/lensworks/internal/shared"
)

const idempotencyModule = "sale_orders"

// PriceCatalog is the master-data collaborator used for pricing.
type PriceCatalog interface {
	pricing.PriceSource
	GetPrice(ctx context.Context, id int64) (pricing.PriceRecord, error)
	FittingPrice(ctx context.Context, id int64) (decimal.Decimal, error)
	TintingPrice(ctx context.Context, id int64) (decimal.Decimal, error)
}

// CustomerDirectory supplies the customer's default discount.
type CustomerDirectory interface {
	Discount(ctx context.Context, id int64) (decimal.Decimal, error)
}

// CreditChecker is the credit limit gate.
type CreditChecker interface {
	Check(ctx context.Context, customerID int64) (customers.Standing, error)
	Violation(st customers.Standing) *shared.FieldError
}

// IdempotencyStore guards create against client retries.
type IdempotencyStore interface {
	Reserve(ctx context.Context, module, key string) (string, error)
	Complete(ctx context.Context, module, key, result string) error
	Delete(ctx context.Context, module, key string) error
}

// Notifier publishes applied status changes.
type Notifier interface {
	StatusChanged(ctx context.Context, change StatusChange) error
}

// TransitionRecorder counts status transition attempts by outcome.
type TransitionRecorder interface {
	ObserveTransition(from, to, outcome string)
}

// Dependencies wires the aggregate. Idempotency, Notifier, Metrics and Now are optional.
type Dependencies struct {
	Repo        Repository
	Catalog     PriceCatalog
	Customers   CustomerDirectory
	Credit      CreditChecker
	Idempotency IdempotencyStore
	Notifier    Notifier
	Metrics     TransitionRecorder
	Logger      *slog.Logger
	Now         func() time.Time
}

type Service struct {
	repo      Repository
	catalog   PriceCatalog
	customers CustomerDirectory
	credit    CreditChecker
	idem      IdempotencyStore
	notifier  Notifier
	metrics   TransitionRecorder
	logger    *slog.Logger
	now       func() time.Time
	validator *Validator
}

func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		repo:      deps.Repo,
		catalog:   deps.Catalog,
		customers: deps.Customers,
		credit:    deps.Credit,
		idem:      deps.Idempotency,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
		validator: NewValidator(deps.Now),
	}
}

// Create validates, prices and stores a new order. A repeated idempotency key
// returns the order created by the first request.
func (s *Service) Create(ctx context.Context, payload OrderPayload, idempotencyKey string) (*OrderView, error) {
	if s.idem == nil || idempotencyKey == "" {
		return s.create(ctx, payload)
	}

	prev, err := s.idem.Reserve(ctx, idempotencyModule, idempotencyKey)
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		id, perr := strconv.ParseInt(prev, 10, 64)
		if perr != nil {
			return nil, fmt.Errorf("replay idempotent create: %w", perr)
		}
		view, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		view.Replayed = true
		return view, nil
	case errors.Is(err, shared.ErrIdempotencyInFlight):
		return nil, fmt.Errorf("%w: %s", shared.ErrConflict, err.Error())
	case err != nil:
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}

	view, err := s.create(ctx, payload)
	if err != nil {
		if derr := s.idem.Delete(ctx, idempotencyModule, idempotencyKey); derr != nil {
			s.logger.Warn("release idempotency key failed", slog.String("key", idempotencyKey), slog.Any("error", derr))
		}
		return nil, err
	}
	if cerr := s.idem.Complete(ctx, idempotencyModule, idempotencyKey, strconv.FormatInt(view.ID, 10)); cerr != nil {
		s.logger.Warn("complete idempotency key failed", slog.String("key", idempotencyKey), slog.Any("error", cerr))
	}
	return view, nil
}

func (s *Service) create(ctx context.Context, payload OrderPayload) (*OrderView, error) {
	status := payload.Status
	if status == "" {
		status = lifecycle.StatusDraft
	}
	errs := s.validator.ValidateCreate(&payload, status)
	standing, err := s.gate(ctx, payload.CustomerID, errs)
	if err != nil {
		return nil, err
	}
	res, err := s.price(ctx, &payload.OrderFields)
	if err != nil {
		return nil, fmt.Errorf("price order: %w", err)
	}

	order := &SaleOrder{Status: status, OrderFields: payload.OrderFields}
	normalize(&order.OrderFields)
	order.applyPricing(res)

	orderDate, _ := time.Parse(DateLayout, order.OrderDate)
	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		no, err := repo.GenerateNumber(ctx, orderDate)
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}
		order.OrderNo = no
		id, err := repo.Create(ctx, order, actor.ID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		order.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Get(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	s.logger.Info("sale order created", slog.Int64("order_id", created.ID), slog.String("order_no", created.OrderNo), slog.String("status", string(created.Status)))
	return s.view(created, &standing), nil
}

// Update merges patch over the stored order and validates the merged record
// against the stored status. Status itself never changes here.
func (s *Service) Update(ctx context.Context, id int64, patch OrderPatch) (*OrderView, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !current.Status.CanEdit() {
		return nil, fmt.Errorf("%w: order %s is %s and can no longer be edited", shared.ErrConflict, current.OrderNo, current.Status)
	}

	merged, err := mergeFields(current.OrderFields, patch)
	if err != nil {
		return nil, err
	}
	errs := s.validator.Validate(&merged, current.Status)
	standing, err := s.gate(ctx, merged.CustomerID, errs)
	if err != nil {
		return nil, err
	}
	res, err := s.price(ctx, &merged)
	if err != nil {
		return nil, fmt.Errorf("price order: %w", err)
	}

	order := *current
	order.OrderFields = merged
	normalize(&order.OrderFields)
	order.applyPricing(res)

	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, &order, actor.ID); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	return s.view(updated, &standing), nil
}

// AdvanceStatus applies one lifecycle transition with optimistic concurrency.
func (s *Service) AdvanceStatus(ctx context.Context, id int64, req AdvanceRequest) (*OrderView, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	expected := req.ExpectedStatus
	if expected == "" {
		expected = current.Status
	}
	if expected != current.Status {
		s.observe(expected, req.Status, "conflict")
		return nil, fmt.Errorf("%w: order %s is %s, expected %s", shared.ErrConflict, current.OrderNo, current.Status, expected)
	}
	if err := lifecycle.Transition(current.Status, req.Status); err != nil {
		s.observe(current.Status, req.Status, "rejected")
		return nil, err
	}

	dispatch := current.DispatchBlock
	if req.Dispatch != nil {
		dispatch = mergeDispatch(dispatch, *req.Dispatch)
	}
	if dispatch.DispatchStatus == "" {
		dispatch.DispatchStatus = DispatchPending
	}
	if err := shared.NewValidationError(s.validator.ValidateStatusFields(req.Status, dispatch)); err != nil {
		s.observe(current.Status, req.Status, "invalid")
		return nil, err
	}

	actor := shared.ActorFromContext(ctx)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.UpdateStatus(ctx, StatusUpdate{
			ID:       id,
			From:     expected,
			To:       req.Status,
			Dispatch: dispatch,
			ActorID:  actor.ID,
		})
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			s.observe(expected, req.Status, "conflict")
		}
		return nil, fmt.Errorf("advance status: %w", err)
	}
	s.observe(expected, req.Status, "applied")

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	s.notify(ctx, StatusChange{
		OrderID: updated.ID,
		OrderNo: updated.OrderNo,
		From:    expected,
		To:      req.Status,
		ActorID: actor.ID,
		At:      s.now().UTC(),
	})
	return s.view(updated, nil), nil
}

// CalculatePricing re-prices a stored order from current master data without persisting.
func (s *Service) CalculatePricing(ctx context.Context, id int64) (pricing.Result, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return pricing.Result{}, fmt.Errorf("get order: %w", err)
	}
	return s.price(ctx, &order.OrderFields)
}

// CalculateDraftPricing prices an unsaved payload.
func (s *Service) CalculateDraftPricing(ctx context.Context, payload OrderPayload) (pricing.Result, error) {
	if err := shared.NewValidationError(s.validator.ValidateDraftPricing(&payload.OrderFields)); err != nil {
		return pricing.Result{}, err
	}
	return s.price(ctx, &payload.OrderFields)
}

// CalculateCost prices quantity lenses (one or two) from a price record.
func (s *Service) CalculateCost(ctx context.Context, req CostRequest) (pricing.Result, error) {
	errs := s.validator.ValidateStruct(&req)
	errs = append(errs, validateCharges(req.AdditionalPrice)...)
	if err := shared.NewValidationError(errs); err != nil {
		return pricing.Result{}, err
	}

	var (
		rec                        pricing.PriceRecord
		fitting, tinting, discount decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = s.catalog.GetPrice(gctx, req.PriceRecordID)
		return shared.Upstream("price", err)
	})
	s.componentLookups(gctx, g, req.FittingID, req.TintingID, req.CustomerID, &fitting, &tinting, &discount)
	if err := g.Wait(); err != nil {
		return pricing.Result{}, err
	}

	base := rec.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Div(decimal.NewFromInt(2))
	return pricing.Calculate(pricing.Input{
		BasePrice:         base,
		FittingPrice:      fitting,
		TintingPrice:      tinting,
		AdditionalCharges: req.AdditionalPrice,
		DiscountPercent:   discount,
		FreeLens:          req.FreeLens,
		FreeFitting:       req.FreeFitting,
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*OrderView, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return s.view(order, nil), nil
}

// Delete removes a DRAFT order.
func (s *Service) Delete(ctx context.Context, id int64) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if !order.Status.CanDelete() {
		return fmt.Errorf("%w: only DRAFT orders can be deleted, order %s is %s", shared.ErrConflict, order.OrderNo, order.Status)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.logger.Info("sale order deleted", slog.Int64("order_id", id), slog.String("order_no", order.OrderNo))
	return nil
}

// gate adds a blocking credit violation to errs so it is reported with every
// other field error. A failed standing lookup surfaces only when errs is empty.
func (s *Service) gate(ctx context.Context, customerID int64, errs []shared.FieldError) (customers.Standing, error) {
	var (
		st        customers.Standing
		lookupErr error
	)
	if customerID > 0 {
		st, lookupErr = s.credit.Check(ctx, customerID)
		if lookupErr == nil {
			if v := s.credit.Violation(st); v != nil {
				errs = append(errs, *v)
			}
		}
	}
	if err := shared.NewValidationError(errs); err != nil {
		return st, err
	}
	if lookupErr != nil {
		return st, fmt.Errorf("check customer standing: %w", lookupErr)
	}
	return st, nil
}

// price fetches every component concurrently and runs the calculator. Nothing
// is cached between calls.
func (s *Service) price(ctx context.Context, f *OrderFields) (pricing.Result, error) {
	var (
		rec                        pricing.PriceRecord
		fitting, tinting, discount decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = pricing.Lookup(gctx, s.catalog, f.LensID, f.CoatingID)
		return err
	})
	s.componentLookups(gctx, g, f.FittingID, f.TintingID, f.CustomerID, &fitting, &tinting, &discount)
	if err := g.Wait(); err != nil {
		return pricing.Result{}, err
	}

	return pricing.Calculate(pricing.Input{
		BasePrice:         pricing.BasePriceForEyes(rec.Price, f.RightEye, f.LeftEye),
		FittingPrice:      fitting,
		TintingPrice:      tinting,
		AdditionalCharges: f.AdditionalPrice,
		DiscountPercent:   discount,
		FreeLens:          f.FreeLens,
		FreeFitting:       f.FreeFitting,
	})
}

func (s *Service) componentLookups(ctx context.Context, g *errgroup.Group, fittingID, tintingID, customerID int64, fitting, tinting, discount *decimal.Decimal) {
	*fitting, *tinting, *discount = decimal.Zero, decimal.Zero, decimal.Zero
	if fittingID > 0 {
		g.Go(func() error {
			v, err := s.catalog.FittingPrice(ctx, fittingID)
			*fitting = v
			return shared.Upstream("fitting", err)
		})
	}
	if tintingID > 0 {
		g.Go(func() error {
			v, err := s.catalog.TintingPrice(ctx, tintingID)
			*tinting = v
			return shared.Upstream("tinting", err)
		})
	}
	g.Go(func() error {
		v, err := s.customers.Discount(ctx, customerID)
		*discount = v
		return shared.Upstream("customer", err)
	})
}

func (s *Service) view(order *SaleOrder, standing *customers.Standing) *OrderView {
	return &OrderView{
		SaleOrder:          order,
		AllowedTransitions: lifecycle.Next(order.Status),
		CreditStanding:     standing,
	}
}

func (s *Service) observe(from, to lifecycle.Status, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(from), string(to), outcome)
	}
}

func (s *Service) notify(ctx context.Context, change StatusChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.StatusChanged(ctx, change); err != nil {
		s.logger.Warn("enqueue status change failed",
			slog.Int64("order_id", change.OrderID),
			slog.String("to", string(change.To)),
			slog.Any("error", err),
		)
	}
}

// mergeFields applies patch to a copy of stored.
func mergeFields(stored OrderFields, patch OrderPatch) (OrderFields, error) {
	merged := stored
	merged.AdditionalPrice = append([]pricing.Charge(nil), stored.AdditionalPrice...)
	if len(patch) == 0 {
		return merged, nil
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		field := "payload"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = typeErr.Field
		}
		return OrderFields{}, shared.NewValidationError([]shared.FieldError{{Field: field, Message: "is invalid"}})
	}
	return merged, nil
}

// mergeDispatch overlays the non-empty fields of in onto d.
func mergeDispatch(d, in DispatchBlock) DispatchBlock {
	if in.DispatchStatus != "" {
		d.DispatchStatus = in.DispatchStatus
	}
	if in.AssignedPersonID != 0 {
		d.AssignedPersonID = in.AssignedPersonID
	}
	overlay(&d.DispatchID, in.DispatchID)
	overlay(&d.EstimatedDate, in.EstimatedDate)
	overlay(&d.EstimatedTime, in.EstimatedTime)
	overlay(&d.ActualDate, in.ActualDate)
	overlay(&d.ActualTime, in.ActualTime)
	overlay(&d.DispatchNotes, in.DispatchNotes)
	return d
}

func overlay(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
