package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/domain"
)

// ConsistencyUseCase runs read-only invariant sweeps over the ledger. It
// backs the operational consistency-check command and is safe to run
// against a live database.
type ConsistencyUseCase struct {
	paymentRepo  PaymentRepository
	entryRepo    EntryRepository
	creditRepo   CreditRepository
	customerRepo CustomerRepository
}

// NewConsistencyUseCase creates a new ConsistencyUseCase.
func NewConsistencyUseCase(
	paymentRepo PaymentRepository,
	entryRepo EntryRepository,
	creditRepo CreditRepository,
	customerRepo CustomerRepository,
) *ConsistencyUseCase {
	return &ConsistencyUseCase{
		paymentRepo:  paymentRepo,
		entryRepo:    entryRepo,
		creditRepo:   creditRepo,
		customerRepo: customerRepo,
	}
}

// PaymentCheckResult reports one payment's invariant check.
type PaymentCheckResult struct {
	PaymentID         string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	Consistent        bool
	Problems          []string
	LastChecked       time.Time
}

// CheckPayment re-derives a payment's balance from its entries and checks
// the structural invariants of the entry tree.
func (uc *ConsistencyUseCase) CheckPayment(ctx context.Context, paymentID string) (*PaymentCheckResult, error) {
	payment, err := uc.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.GetByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	result := &PaymentCheckResult{
		PaymentID:       paymentID,
		RecordedBalance: payment.Balance,
		LastChecked:     time.Now().UTC(),
	}

	applied := decimal.Zero
	heads := 0
	byID := make(map[string]*domain.LedgerEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	for _, e := range entries {
		if e.Currency != payment.Currency {
			result.Problems = append(result.Problems,
				fmt.Sprintf("entry %s currency %s differs from payment currency %s", e.ID, e.Currency, payment.Currency))
		}
		if e.ParentEntryID != nil {
			if _, ok := byID[*e.ParentEntryID]; !ok {
				result.Problems = append(result.Problems,
					fmt.Sprintf("entry %s parent %s not owned by payment", e.ID, *e.ParentEntryID))
			}
		} else if !isReversal(e, entries) {
			heads++
		}
		if e.Status == domain.EntryStatusSucceeded && !isReversal(e, entries) && !e.CreditFunded() {
			applied = applied.Add(e.Amount.Abs())
		}
	}
	if heads > 1 && !payment.Voided {
		result.Problems = append(result.Problems,
			fmt.Sprintf("payment has %d transaction group heads, want at most 1", heads))
	}

	if payment.Voided {
		result.CalculatedBalance = payment.Amount
	} else {
		result.CalculatedBalance = payment.Amount.Sub(applied)
	}
	result.Difference = result.RecordedBalance.Sub(result.CalculatedBalance)
	result.Consistent = result.Difference.IsZero() && len(result.Problems) == 0

	return result, nil
}

// CheckCustomerCredit walks a customer's credit ledger in timestamp order
// and verifies the running balance chain and the denormalized balance on
// the customer row.
func (uc *ConsistencyUseCase) CheckCustomerCredit(ctx context.Context, customerID string) ([]string, error) {
	customer, err := uc.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	rows, err := uc.creditRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var problems []string
	running := decimal.Zero
	for _, row := range rows {
		running = running.Add(row.Amount)
		if !row.RunningBalance.Equal(running) {
			problems = append(problems,
				fmt.Sprintf("credit entry %s running balance %s, recomputed %s",
					row.ID, row.RunningBalance.String(), running.String()))
			running = row.RunningBalance
		}
	}
	if !customer.CreditBalance.Equal(running) {
		problems = append(problems,
			fmt.Sprintf("customer %s credit balance %s, ledger sums to %s",
				customerID, customer.CreditBalance.String(), running.String()))
	}

	return problems, nil
}

// ConsistencyReport summarizes a full sweep.
type ConsistencyReport struct {
	TotalPayments      int
	ConsistentPayments int
	PaymentProblems    []*PaymentCheckResult
	TotalCustomers     int
	CreditProblems     map[string][]string
	CheckedAt          time.Time
}

// Consistent reports whether the sweep found no discrepancies.
func (r *ConsistencyReport) Consistent() bool {
	return len(r.PaymentProblems) == 0 && len(r.CreditProblems) == 0
}

// GenerateReport sweeps every payment and every customer credit ledger.
func (uc *ConsistencyUseCase) GenerateReport(ctx context.Context) (*ConsistencyReport, error) {
	report := &ConsistencyReport{
		CreditProblems: make(map[string][]string),
		CheckedAt:      time.Now().UTC(),
	}

	const pageSize = 1000

	for offset := 0; ; offset += pageSize {
		payments, err := uc.paymentRepo.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			result, err := uc.CheckPayment(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check payment %s: %w", p.ID, err)
			}
			report.TotalPayments++
			if result.Consistent {
				report.ConsistentPayments++
			} else {
				report.PaymentProblems = append(report.PaymentProblems, result)
			}
		}
		if len(payments) < pageSize {
			break
		}
	}

	for offset := 0; ; offset += pageSize {
		customers, err := uc.customerRepo.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, c := range customers {
			problems, err := uc.CheckCustomerCredit(ctx, c.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check customer %s: %w", c.ID, err)
			}
			report.TotalCustomers++
			if len(problems) > 0 {
				report.CreditProblems[c.ID] = problems
			}
		}
		if len(customers) < pageSize {
			break
		}
	}

	return report, nil
}
