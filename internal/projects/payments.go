package projects

import (
	"context"
	"errors"
	"sort"
	"time"

	"cxema-backend/internal/domain"
	"cxema-backend/internal/finance"
	"cxema-backend/internal/pkg/parse"
	"cxema-backend/internal/pkg/stableid"

	"gorm.io/gorm"
)

// PaymentWrite creates a payment through either surface; the date decides
// which table the record actually lands in.
type PaymentWrite struct {
	PayDate string  `json:"pay_date"`
	Amount  float64 `json:"amount"`
	Note    string  `json:"note"`
}

// PaymentPatch updates only present fields.
type PaymentPatch struct {
	PayDate *string  `json:"pay_date"`
	Amount  *float64 `json:"amount"`
	Note    *string  `json:"note"`
}

// PaymentRow is the unified payment representation. In fact listings, due
// plan rows appear with negated ids; patching or deleting such a negative id
// targets the underlying plan row.
type PaymentRow struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	PayDate     time.Time `json:"pay_date"`
	Amount      float64   `json:"amount"`
	Note        string    `json:"note"`
	Kind        string    `json:"kind"`
	StablePayID string    `json:"stable_pay_id,omitempty"`
}

func planRow(p *domain.PaymentPlan) PaymentRow {
	return PaymentRow{
		ID: p.ID, ProjectID: p.ProjectID, PayDate: p.PayDate,
		Amount: p.Amount, Note: p.Note,
		Kind: string(finance.KindPlan), StablePayID: p.StablePayID,
	}
}

func factRow(f *domain.PaymentFact) PaymentRow {
	return PaymentRow{
		ID: f.ID, ProjectID: f.ProjectID, PayDate: f.PayDate,
		Amount: f.Amount, Note: f.Note,
		Kind: string(finance.KindFact),
	}
}

func parsePayDate(raw string) (time.Time, error) {
	d, ok := parse.Date(raw)
	if !ok {
		return time.Time{}, ErrDateInvalid
	}
	return d, nil
}

// ListPlans returns only plans still in the future; plans whose date has
// passed surface through the fact listing instead.
func (s *Service) ListPlans(ctx context.Context, projectID int64) ([]domain.PaymentPlan, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	var out []domain.PaymentPlan
	if err := s.DB.WithContext(ctx).
		Where("project_id = ? AND pay_date > ?", projectID, today()).
		Order("pay_date ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePlan classifies on write: a date that is already due lands straight
// in the fact table instead of lingering as an overdue plan.
func (s *Service) CreatePlan(ctx context.Context, projectID int64, in PaymentWrite) (*PaymentRow, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	payDate, err := parsePayDate(in.PayDate)
	if err != nil {
		return nil, err
	}
	return s.createClassified(ctx, projectID, payDate, in.Amount, in.Note)
}

func (s *Service) createClassified(ctx context.Context, projectID int64, payDate time.Time, amount float64, note string) (*PaymentRow, error) {
	if amount < 0 {
		return nil, ErrAmountNegative
	}
	if finance.ClassifyPayment(payDate, time.Now().UTC()) == finance.KindFact {
		f := domain.PaymentFact{ProjectID: projectID, PayDate: payDate, Amount: amount, Note: note}
		if err := s.DB.WithContext(ctx).Create(&f).Error; err != nil {
			return nil, err
		}
		row := factRow(&f)
		return &row, nil
	}
	p := domain.PaymentPlan{
		StablePayID: stableid.NewPay(),
		ProjectID:   projectID,
		PayDate:     payDate,
		Amount:      amount,
		Note:        note,
	}
	if err := s.DB.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	row := planRow(&p)
	return &row, nil
}

func (s *Service) getPlan(ctx context.Context, projectID, payID int64) (*domain.PaymentPlan, error) {
	var p domain.PaymentPlan
	err := s.DB.WithContext(ctx).
		Where("id = ? AND project_id = ?", payID, projectID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePlan patches the plan; if the new date is already due the record
// moves to the fact table, keeping date/amount/note and dropping the plan
// identity.
func (s *Service) UpdatePlan(ctx context.Context, projectID, payID int64, in PaymentPatch) (*PaymentRow, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	p, err := s.getPlan(ctx, projectID, payID)
	if err != nil {
		return nil, err
	}
	if err := applyPaymentPatch(&p.PayDate, &p.Amount, &p.Note, in); err != nil {
		return nil, err
	}

	if finance.ClassifyPayment(p.PayDate, time.Now().UTC()) == finance.KindFact {
		return s.movePlanToFact(ctx, p)
	}
	if err := s.DB.WithContext(ctx).Save(p).Error; err != nil {
		return nil, err
	}
	row := planRow(p)
	return &row, nil
}

func (s *Service) DeletePlan(ctx context.Context, projectID, payID int64) error {
	if _, err := s.Get(ctx, projectID); err != nil {
		return err
	}
	p, err := s.getPlan(ctx, projectID, payID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Delete(p).Error
}

// ListFacts merges recorded facts with plans whose date has come due; the
// due plans carry negated ids so the caller can address them back.
func (s *Service) ListFacts(ctx context.Context, projectID int64) ([]PaymentRow, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	var facts []domain.PaymentFact
	if err := s.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("pay_date ASC, id ASC").Find(&facts).Error; err != nil {
		return nil, err
	}
	var duePlans []domain.PaymentPlan
	if err := s.DB.WithContext(ctx).
		Where("project_id = ? AND pay_date <= ?", projectID, today()).
		Order("pay_date ASC, id ASC").Find(&duePlans).Error; err != nil {
		return nil, err
	}

	rows := make([]PaymentRow, 0, len(facts)+len(duePlans))
	for i := range facts {
		rows = append(rows, factRow(&facts[i]))
	}
	for i := range duePlans {
		row := planRow(&duePlans[i])
		row.ID = -duePlans[i].ID
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].PayDate.Equal(rows[j].PayDate) {
			return rows[i].PayDate.Before(rows[j].PayDate)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

// CreateFact classifies on write: a future date becomes a plan.
func (s *Service) CreateFact(ctx context.Context, projectID int64, in PaymentWrite) (*PaymentRow, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	payDate, err := parsePayDate(in.PayDate)
	if err != nil {
		return nil, err
	}
	return s.createClassified(ctx, projectID, payDate, in.Amount, in.Note)
}

// UpdateFact patches a fact (or, via a negative id, a due plan). Boundary
// crossings move the record between tables.
func (s *Service) UpdateFact(ctx context.Context, projectID, factID int64, in PaymentPatch) (*PaymentRow, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}

	if factID < 0 {
		p, err := s.getPlan(ctx, projectID, -factID)
		if errors.Is(err, ErrPaymentPlanNotFound) {
			return nil, ErrPaymentFactNotFound
		}
		if err != nil {
			return nil, err
		}
		if err := applyPaymentPatch(&p.PayDate, &p.Amount, &p.Note, in); err != nil {
			return nil, err
		}
		if finance.ClassifyPayment(p.PayDate, time.Now().UTC()) == finance.KindFact {
			return s.movePlanToFact(ctx, p)
		}
		if err := s.DB.WithContext(ctx).Save(p).Error; err != nil {
			return nil, err
		}
		row := planRow(p)
		row.ID = -p.ID
		return &row, nil
	}

	var f domain.PaymentFact
	err := s.DB.WithContext(ctx).
		Where("id = ? AND project_id = ?", factID, projectID).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentFactNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := applyPaymentPatch(&f.PayDate, &f.Amount, &f.Note, in); err != nil {
		return nil, err
	}
	if finance.ClassifyPayment(f.PayDate, time.Now().UTC()) == finance.KindPlan {
		return s.moveFactToPlan(ctx, &f)
	}
	if err := s.DB.WithContext(ctx).Save(&f).Error; err != nil {
		return nil, err
	}
	row := factRow(&f)
	return &row, nil
}

func (s *Service) DeleteFact(ctx context.Context, projectID, factID int64) error {
	if _, err := s.Get(ctx, projectID); err != nil {
		return err
	}
	if factID < 0 {
		p, err := s.getPlan(ctx, projectID, -factID)
		if errors.Is(err, ErrPaymentPlanNotFound) {
			return ErrPaymentFactNotFound
		}
		if err != nil {
			return err
		}
		return s.DB.WithContext(ctx).Delete(p).Error
	}
	res := s.DB.WithContext(ctx).
		Where("id = ? AND project_id = ?", factID, projectID).Delete(&domain.PaymentFact{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentFactNotFound
	}
	return nil
}

func (s *Service) movePlanToFact(ctx context.Context, p *domain.PaymentPlan) (*PaymentRow, error) {
	f := domain.PaymentFact{ProjectID: p.ProjectID, PayDate: p.PayDate, Amount: p.Amount, Note: p.Note}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(p).Error; err != nil {
			return err
		}
		return tx.Create(&f).Error
	})
	if err != nil {
		return nil, err
	}
	row := factRow(&f)
	return &row, nil
}

func (s *Service) moveFactToPlan(ctx context.Context, f *domain.PaymentFact) (*PaymentRow, error) {
	p := domain.PaymentPlan{
		StablePayID: stableid.NewPay(),
		ProjectID:   f.ProjectID,
		PayDate:     f.PayDate,
		Amount:      f.Amount,
		Note:        f.Note,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(f).Error; err != nil {
			return err
		}
		return tx.Create(&p).Error
	})
	if err != nil {
		return nil, err
	}
	row := planRow(&p)
	return &row, nil
}

func applyPaymentPatch(payDate *time.Time, amount *float64, note *string, in PaymentPatch) error {
	if in.PayDate != nil {
		d, err := parsePayDate(*in.PayDate)
		if err != nil {
			return err
		}
		*payDate = d
	}
	if in.Amount != nil {
		if *in.Amount < 0 {
			return ErrAmountNegative
		}
		*amount = *in.Amount
	}
	if in.Note != nil {
		*note = *in.Note
	}
	return nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
