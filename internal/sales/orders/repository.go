package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lensworks/lensworks/internal/platform/db"
	"github.com/lensworks/lensworks/internal/sales/eyespec"
	"github.com/lensworks/lensworks/internal/sales/lifecycle"
	"github.com/lensworks/lensworks/internal/shared"
)

var (
	// ErrNotFound indicates the sale order does not exist.
	ErrNotFound = fmt.Errorf("sale order %w", shared.ErrNotFound)
	// ErrStatusConflict indicates the stored status no longer matches the expected one.
	ErrStatusConflict = fmt.Errorf("%w: order status changed concurrently", shared.ErrConflict)
)

// StatusUpdate is a compare-and-set of the order status.
type StatusUpdate struct {
	ID       int64
	From     lifecycle.Status
	To       lifecycle.Status
	Dispatch DispatchBlock
	ActorID  int64
}

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*SaleOrder, error)
	Create(ctx context.Context, order *SaleOrder, actorID int64) (int64, error)
	// Update rewrites the editable fields if the stored status still equals order.Status.
	Update(ctx context.Context, order *SaleOrder, actorID int64) error
	UpdateStatus(ctx context.Context, upd StatusUpdate) error
	Delete(ctx context.Context, id int64) error
	GenerateNumber(ctx context.Context, day time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	seq  dbtx // order number counter; always the pool
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, seq: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, seq: r.seq, pool: r.pool})
	})
}

// editableColumns are written by Create and Update, in this order.
var editableColumns = []string{
	"customer_id", "order_date", "delivery_schedule", "type", "urgent_order", "free_lens", "free_fitting",
	"lens_id", "category_id", "type_id", "dia_id", "fitting_id", "tinting_id", "coating_id",
	"right_eye", "left_eye",
	"right_spherical", "right_cylindrical", "right_axis", "right_add",
	"right_dia", "right_base", "right_base_size", "right_bled",
	"left_spherical", "left_cylindrical", "left_axis", "left_add",
	"left_dia", "left_base", "left_base_size", "left_bled",
	"dispatch_status", "assigned_person_id", "dispatch_id", "estimated_date", "estimated_time",
	"actual_date", "actual_time", "dispatch_notes",
	"lens_price", "fitting_price", "tinting_price", "discount", "additional_price",
	"subtotal", "waived", "discount_amount", "final_total",
	"remark", "customer_ref_no", "item_ref_no",
}

func editableArgs(o *SaleOrder) []interface{} {
	f := &o.OrderFields
	return []interface{}{
		f.CustomerID, dateArg(f.OrderDate, DateLayout), dateArg(f.DeliverySchedule, DateTimeLayout),
		f.Type, f.UrgentOrder, f.FreeLens, f.FreeFitting,
		f.LensID, f.CategoryID, f.TypeID, f.DiaID, idArg(f.FittingID), f.TintingID, f.CoatingID,
		f.RightEye, f.LeftEye,
		measurementArg(f.RightSpherical), measurementArg(f.RightCylindrical), measurementArg(f.RightAxis), measurementArg(f.RightAdd),
		f.RightDia, f.RightBase, f.RightBaseSize, f.RightBled,
		measurementArg(f.LeftSpherical), measurementArg(f.LeftCylindrical), measurementArg(f.LeftAxis), measurementArg(f.LeftAdd),
		f.LeftDia, f.LeftBase, f.LeftBaseSize, f.LeftBled,
		string(f.DispatchStatus), idArg(f.AssignedPersonID), f.DispatchID, dateArg(f.EstimatedDate, DateLayout), f.EstimatedTime,
		dateArg(f.ActualDate, DateLayout), f.ActualTime, f.DispatchNotes,
		o.LensPrice, o.FittingPrice, o.TintingPrice, o.Discount, f.AdditionalPrice,
		o.Subtotal, o.Waived, o.DiscountAmount, o.FinalTotal,
		f.Remark, f.CustomerRefNo, f.ItemRefNo,
	}
}

const selectOrder = `
	SELECT so.id, so.order_no, so.status, COALESCE(c.name, ''), COALESCE(c.code, ''),
	       so.customer_id, so.order_date, so.delivery_schedule, so.type, so.urgent_order, so.free_lens, so.free_fitting,
	       so.lens_id, so.category_id, so.type_id, so.dia_id, so.fitting_id, so.tinting_id, so.coating_id,
	       so.right_eye, so.left_eye,
	       so.right_spherical, so.right_cylindrical, so.right_axis, so.right_add,
	       so.right_dia, so.right_base, so.right_base_size, so.right_bled,
	       so.left_spherical, so.left_cylindrical, so.left_axis, so.left_add,
	       so.left_dia, so.left_base, so.left_base_size, so.left_bled,
	       so.dispatch_status, so.assigned_person_id, so.dispatch_id, so.estimated_date, so.estimated_time,
	       so.actual_date, so.actual_time, so.dispatch_notes,
	       so.lens_price, so.fitting_price, so.tinting_price, so.discount, so.additional_price,
	       so.subtotal, so.waived, so.discount_amount, so.final_total,
	       so.remark, so.customer_ref_no, so.item_ref_no,
	       so.created_by, so.updated_by, so.created_at, so.updated_at
	FROM sale_orders so
	LEFT JOIN customers c ON c.id = so.customer_id
	WHERE so.id = $1`

func (r *repository) Get(ctx context.Context, id int64) (*SaleOrder, error) {
	var (
		o                                   SaleOrder
		status, dispatchStatus              string
		orderDate                           time.Time
		deliverySchedule, estimated, actual *time.Time
		fittingID, assignedPersonID         *int64
		rSph, rCyl, rAxis, rAdd             decimal.NullDecimal
		lSph, lCyl, lAxis, lAdd             decimal.NullDecimal
	)
	f := &o.OrderFields
	err := r.db.QueryRow(ctx, selectOrder, id).Scan(
		&o.ID, &o.OrderNo, &status, &o.CustomerName, &o.CustomerCode,
		&f.CustomerID, &orderDate, &deliverySchedule, &f.Type, &f.UrgentOrder, &f.FreeLens, &f.FreeFitting,
		&f.LensID, &f.CategoryID, &f.TypeID, &f.DiaID, &fittingID, &f.TintingID, &f.CoatingID,
		&f.RightEye, &f.LeftEye,
		&rSph, &rCyl, &rAxis, &rAdd,
		&f.RightDia, &f.RightBase, &f.RightBaseSize, &f.RightBled,
		&lSph, &lCyl, &lAxis, &lAdd,
		&f.LeftDia, &f.LeftBase, &f.LeftBaseSize, &f.LeftBled,
		&dispatchStatus, &assignedPersonID, &f.DispatchID, &estimated, &f.EstimatedTime,
		&actual, &f.ActualTime, &f.DispatchNotes,
		&o.LensPrice, &o.FittingPrice, &o.TintingPrice, &o.Discount, &f.AdditionalPrice,
		&o.Subtotal, &o.Waived, &o.DiscountAmount, &o.FinalTotal,
		&f.Remark, &f.CustomerRefNo, &f.ItemRefNo,
		&o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	o.Status = lifecycle.Status(status)
	f.DispatchStatus = DispatchStatus(dispatchStatus)
	f.OrderDate = orderDate.Format(DateLayout)
	f.DeliverySchedule = formatDate(deliverySchedule, DateTimeLayout)
	f.EstimatedDate = formatDate(estimated, DateLayout)
	f.ActualDate = formatDate(actual, DateLayout)
	f.FittingID = derefID(fittingID)
	f.AssignedPersonID = derefID(assignedPersonID)
	f.RightSpherical, f.RightCylindrical, f.RightAxis, f.RightAdd = measurement(rSph), measurement(rCyl), measurement(rAxis), measurement(rAdd)
	f.LeftSpherical, f.LeftCylindrical, f.LeftAxis, f.LeftAdd = measurement(lSph), measurement(lCyl), measurement(lAxis), measurement(lAdd)
	return &o, nil
}

func (r *repository) Create(ctx context.Context, order *SaleOrder, actorID int64) (int64, error) {
	cols := append([]string{"order_no", "status", "created_by", "updated_by"}, editableColumns...)
	args := append([]interface{}{order.OrderNo, string(order.Status), idArg(actorID), idArg(actorID)}, editableArgs(order)...)
	query := fmt.Sprintf(
		"INSERT INTO sale_orders (%s) VALUES (%s) RETURNING id",
		strings.Join(cols, ", "), placeholders(1, len(cols)),
	)
	var id int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: order number %s already taken", shared.ErrConflict, order.OrderNo)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, order *SaleOrder, actorID int64) error {
	sets := make([]string, 0, len(editableColumns)+2)
	for i, col := range editableColumns {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+4))
	}
	sets = append(sets, "updated_by = $3", "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE sale_orders SET %s WHERE id = $1 AND status = $2", strings.Join(sets, ", "))

	args := append([]interface{}{order.ID, string(order.Status), idArg(actorID)}, editableArgs(order)...)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, upd StatusUpdate) error {
	d := upd.Dispatch
	tag, err := r.db.Exec(ctx, `
		UPDATE sale_orders
		SET status = $3, dispatch_status = $4, assigned_person_id = $5, dispatch_id = $6,
		    estimated_date = $7, estimated_time = $8, actual_date = $9, actual_time = $10,
		    dispatch_notes = $11, updated_by = $12, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		upd.ID, string(upd.From), string(upd.To), string(d.DispatchStatus), idArg(d.AssignedPersonID), d.DispatchID,
		dateArg(d.EstimatedDate, DateLayout), d.EstimatedTime, dateArg(d.ActualDate, DateLayout), d.ActualTime,
		d.DispatchNotes, idArg(upd.ActorID),
	)
	if err != nil {
		if db.IsSerializationFailure(err) {
			return ErrStatusConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sale_orders WHERE id = $1 AND status = $2`, id, string(lifecycle.StatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// nextNumber bumps the per-day counter. A day without a counter row starts
// after the highest number already issued with that prefix.
const nextNumber = `
	INSERT INTO sale_order_sequences (day, seq)
	VALUES ($1, COALESCE((
		SELECT MAX(substring(order_no FROM 11)::int)
		FROM sale_orders
		WHERE order_no LIKE $2
	), 0) + 1)
	ON CONFLICT (day) DO UPDATE SET seq = sale_order_sequences.seq + 1
	RETURNING seq`

// GenerateNumber allocates SO-{YY}{MM}{DD}-{SEQ}. The counter is bumped outside
// any open transaction, so numbers are never reused but a rolled back create
// leaves a gap.
func (r *repository) GenerateNumber(ctx context.Context, day time.Time) (string, error) {
	prefix := "SO-" + day.Format("060102") + "-"
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var seq int64
	if err := r.seq.QueryRow(ctx, nextNumber, date, prefix+"%").Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

func placeholders(from, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(out, ", ")
}

func idArg(id int64) interface{} {
	if id <= 0 {
		return nil
	}
	return id
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func dateArg(raw, layout string) interface{} {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return nil
	}
	return t
}

func formatDate(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}

func measurementArg(m eyespec.Measurement) decimal.NullDecimal {
	if m.IsBlank() {
		return decimal.NullDecimal{}
	}
	d, err := m.Decimal()
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func measurement(d decimal.NullDecimal) eyespec.Measurement {
	if !d.Valid {
		return ""
	}
	return eyespec.Measurement(d.Decimal.String())
}
