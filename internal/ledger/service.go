package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-retail/meridian/internal/party"
	"github.com/meridian-retail/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, txType TxType, id int64) (Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates cached product reads after stock moved.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Service is the reconciliation orchestrator: the only code path that
// creates, updates, or deletes transactions, and with them the derived
// stock and due-balance aggregates. Each operation runs inside one
// repeatable-read transaction, so a failure at any step leaves no
// partially applied effects behind.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cache       CachePort
	stock       StockLedger
	balance     BalanceLedger
}

// NewService builds Service. allowNegativeStock keeps the permissive
// backorder behavior when true.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cache CachePort, allowNegativeStock bool) *Service {
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		cache:       cache,
		stock:       StockLedger{AllowNegative: allowNegativeStock},
	}
}

// typeRules captures how one transaction type is validated.
type typeRules struct {
	txType        TxType
	partyKind     party.Kind
	codePrefix    string
	allowPayments bool
	defaultStatus string
	validStatus   func(string) bool
	transition    func(from, to string) error
}

var (
	saleRules = typeRules{
		txType:        TxTypeSale,
		partyKind:     party.KindCustomer,
		codePrefix:    "SAL",
		allowPayments: true,
		defaultStatus: string(SaleStatusOrdered),
		validStatus:   func(s string) bool { return ValidSaleStatus(SaleStatus(s)) },
		transition: func(from, to string) error {
			_, err := SaleTransition(SaleStatus(from), SaleStatus(to))
			return err
		},
	}
	purchaseRules = typeRules{
		txType:        TxTypePurchase,
		partyKind:     party.KindSupplier,
		codePrefix:    "PUR",
		allowPayments: true,
		defaultStatus: string(PurchaseStatusOrdered),
		validStatus:   func(s string) bool { return ValidPurchaseStatus(PurchaseStatus(s)) },
		transition: func(from, to string) error {
			_, err := PurchaseTransition(PurchaseStatus(from), PurchaseStatus(to))
			return err
		},
	}
	salesReturnRules = typeRules{
		txType:     TxTypeSalesReturn,
		partyKind:  party.KindCustomer,
		codePrefix: "SRT",
	}
	purchaseReturnRules = typeRules{
		txType:     TxTypePurchaseReturn,
		partyKind:  party.KindSupplier,
		codePrefix: "PRT",
	}
)

// CreateSale records a sale. Stock is held only when the sale is
// created already Dispatched; the customer's sales_due grows by the
// unpaid remainder.
func (s *Service) CreateSale(ctx context.Context, input CreateInput) (Transaction, error) {
	return s.create(ctx, saleRules, input)
}

// CreatePurchase records a purchase. No stock moves; the supplier's
// purchase_due grows by the unpaid remainder.
func (s *Service) CreatePurchase(ctx context.Context, input CreateInput) (Transaction, error) {
	return s.create(ctx, purchaseRules, input)
}

// CreateSalesReturn records goods re-entering inventory from a
// customer.
func (s *Service) CreateSalesReturn(ctx context.Context, input CreateInput) (Transaction, error) {
	return s.create(ctx, salesReturnRules, input)
}

// CreatePurchaseReturn records goods leaving inventory back to a
// supplier.
func (s *Service) CreatePurchaseReturn(ctx context.Context, input CreateInput) (Transaction, error) {
	return s.create(ctx, purchaseReturnRules, input)
}

// UpdateSale replaces a sale's items, payments, and optionally status.
func (s *Service) UpdateSale(ctx context.Context, id int64, input UpdateInput) (Transaction, error) {
	return s.update(ctx, saleRules, id, input)
}

// UpdatePurchase replaces a purchase's items, payments, and optionally
// status.
func (s *Service) UpdatePurchase(ctx context.Context, id int64, input UpdateInput) (Transaction, error) {
	return s.update(ctx, purchaseRules, id, input)
}

// UpdateSalesReturn replaces a sales return's items.
func (s *Service) UpdateSalesReturn(ctx context.Context, id int64, input UpdateInput) (Transaction, error) {
	return s.update(ctx, salesReturnRules, id, input)
}

// UpdatePurchaseReturn replaces a purchase return's items.
func (s *Service) UpdatePurchaseReturn(ctx context.Context, id int64, input UpdateInput) (Transaction, error) {
	return s.update(ctx, purchaseReturnRules, id, input)
}

// DeleteSale removes a sale. Stock held by a dispatched sale stays
// deducted; only the customer's due balance is retracted.
func (s *Service) DeleteSale(ctx context.Context, id int64, actorID int64) error {
	return s.delete(ctx, saleRules, id, actorID)
}

// DeletePurchase removes a purchase and retracts its balance effect.
func (s *Service) DeletePurchase(ctx context.Context, id int64, actorID int64) error {
	return s.delete(ctx, purchaseRules, id, actorID)
}

// DeleteSalesReturn removes a sales return, reverting its stock and
// balance effects.
func (s *Service) DeleteSalesReturn(ctx context.Context, id int64, actorID int64) error {
	return s.delete(ctx, salesReturnRules, id, actorID)
}

// DeletePurchaseReturn removes a purchase return, reverting its stock
// and balance effects.
func (s *Service) DeletePurchaseReturn(ctx context.Context, id int64, actorID int64) error {
	return s.delete(ctx, purchaseReturnRules, id, actorID)
}

// Get returns one transaction with items and payments.
func (s *Service) Get(ctx context.Context, txType TxType, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, txType, id)
}

// List returns transaction headers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	if filter.Type == "" {
		return nil, 0, fmt.Errorf("%w: transaction type required", ErrValidation)
	}
	return s.repo.ListTransactions(ctx, filter)
}

func (s *Service) create(ctx context.Context, rules typeRules, input CreateInput) (Transaction, error) {
	if err := validateInput(rules, input.Items, input.Payments); err != nil {
		return Transaction{}, err
	}
	if input.PartyID == 0 {
		return Transaction{}, fmt.Errorf("%w: party required", ErrValidation)
	}
	status := input.Status
	if rules.validStatus != nil {
		if status == "" {
			status = rules.defaultStatus
		}
		if !rules.validStatus(status) {
			return Transaction{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
	} else if status != "" {
		return Transaction{}, fmt.Errorf("%w: %s carries no status", ErrValidation, rules.txType)
	}

	code := input.Code
	if code == "" {
		code = generateCode(rules.codePrefix)
	}
	// Deterministic key: retrying the same type+code dedupes, distinct
	// codes never collide.
	key := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%s", rules.txType, code))).String()
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "ledger"); err != nil {
			return Transaction{}, err
		}
		insertedKey = true
	}

	items := buildItems(input.Items)
	payments := buildPayments(input.Payments)
	grandTotal, paidAmount, dueAmount := ComputeTotals(items, payments)

	record := Transaction{
		Code:       code,
		Type:       rules.txType,
		PartyID:    input.PartyID,
		BranchID:   input.BranchID,
		Status:     status,
		GrandTotal: grandTotal,
		PaidAmount: paidAmount,
		DueAmount:  dueAmount,
		Note:       input.Note,
		Items:      items,
	}

	var txID int64
	var stockMoved bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.checkReferences(ctx, tx, rules, input.PartyID, items); err != nil {
			return err
		}
		id, err := tx.InsertTransaction(ctx, record)
		if err != nil {
			return err
		}
		txID = id
		if err := tx.ReplaceItems(ctx, id, items); err != nil {
			return err
		}
		if len(payments) > 0 {
			if err := tx.ReplacePayments(ctx, id, payments); err != nil {
				return err
			}
		}
		record.Items = items
		deltas := s.stock.DeltasForCreate(record)
		stockMoved = len(deltas) > 0
		if err := s.stock.Apply(ctx, tx, id, deltas, string(rules.txType)+"_CREATE"); err != nil {
			return err
		}
		return s.balance.Apply(ctx, tx, id, input.PartyID, s.balance.Field(rules.txType), s.balance.Amount(record))
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Transaction{}, err
	}

	s.afterCommit(ctx, input.ActorID, "create", rules.txType, txID, stockMoved, map[string]any{
		"code":        code,
		"grand_total": grandTotal,
		"due_amount":  dueAmount,
	})
	return s.repo.GetTransaction(ctx, rules.txType, txID)
}

func (s *Service) update(ctx context.Context, rules typeRules, id int64, input UpdateInput) (Transaction, error) {
	if err := validateInput(rules, input.Items, input.Payments); err != nil {
		return Transaction{}, err
	}

	items := buildItems(input.Items)
	payments := buildPayments(input.Payments)
	grandTotal, paidAmount, dueAmount := ComputeTotals(items, payments)

	var stockMoved bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetTransactionForUpdate(ctx, rules.txType, id)
		if err != nil {
			return err
		}
		newStatus := input.Status
		if rules.validStatus != nil {
			if newStatus == "" {
				newStatus = old.Status
			}
			if !rules.validStatus(newStatus) {
				return fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
			}
			// A status change through the update path obeys the same
			// transition table as the status endpoint, so an update
			// cannot smuggle a sale out of a terminal state.
			if newStatus != old.Status {
				if err := rules.transition(old.Status, newStatus); err != nil {
					return err
				}
			}
		} else if newStatus != "" {
			return fmt.Errorf("%w: %s carries no status", ErrValidation, rules.txType)
		}
		if err := s.checkProducts(ctx, tx, items); err != nil {
			return err
		}

		if err := tx.UpdateTransactionHeader(ctx, id, newStatus, grandTotal, paidAmount, dueAmount, input.Note); err != nil {
			return err
		}
		// Old embedded children are replaced wholesale, never patched.
		if err := tx.ReplaceItems(ctx, id, items); err != nil {
			return err
		}
		if rules.allowPayments {
			if err := tx.ReplacePayments(ctx, id, payments); err != nil {
				return err
			}
		}

		// Revert-then-reapply: the reverting half is computed from the
		// stored items, the reapplying half from the submitted ones.
		deltas := s.stock.DeltasForUpdate(old, items, newStatus)
		stockMoved = len(deltas) > 0
		if err := s.stock.Apply(ctx, tx, id, deltas, string(rules.txType)+"_UPDATE"); err != nil {
			return err
		}

		updated := old
		updated.GrandTotal = grandTotal
		updated.PaidAmount = paidAmount
		updated.DueAmount = dueAmount
		balanceDelta := s.balance.Amount(updated) - s.balance.Amount(old)
		return s.balance.Apply(ctx, tx, id, old.PartyID, s.balance.Field(rules.txType), balanceDelta)
	})
	if err != nil {
		return Transaction{}, err
	}

	s.afterCommit(ctx, input.ActorID, "update", rules.txType, id, stockMoved, map[string]any{
		"grand_total": grandTotal,
		"due_amount":  dueAmount,
	})
	return s.repo.GetTransaction(ctx, rules.txType, id)
}

func (s *Service) delete(ctx context.Context, rules typeRules, id int64, actorID int64) error {
	var stockMoved bool
	var code string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetTransactionForUpdate(ctx, rules.txType, id)
		if err != nil {
			return err
		}
		code = old.Code
		deltas := s.stock.DeltasForDelete(old)
		stockMoved = len(deltas) > 0
		if err := s.stock.Apply(ctx, tx, id, deltas, string(rules.txType)+"_DELETE"); err != nil {
			return err
		}
		if err := s.balance.Apply(ctx, tx, id, old.PartyID, s.balance.Field(rules.txType), -s.balance.Amount(old)); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, actorID, "delete", rules.txType, id, stockMoved, map[string]any{"code": code})
	return nil
}

// ChangeSaleStatus drives the sale state machine. Requesting the
// current status again is a no-op: the guard runs before any effect,
// so repeated dispatch requests hold stock at most once.
func (s *Service) ChangeSaleStatus(ctx context.Context, id int64, to SaleStatus, actorID int64) (Transaction, error) {
	if !ValidSaleStatus(to) {
		return Transaction{}, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	var stockMoved, changed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetTransactionForUpdate(ctx, TxTypeSale, id)
		if err != nil {
			return err
		}
		if SaleStatus(old.Status) == to {
			return nil
		}
		effect, err := SaleTransition(SaleStatus(old.Status), to)
		if err != nil {
			return err
		}
		var deltas map[int64]int64
		switch effect {
		case EffectHold:
			deltas = StockDeltas(nil, 0, old.Items, -1)
		case EffectRelease:
			deltas = StockDeltas(nil, 0, old.Items, 1)
		}
		stockMoved = len(deltas) > 0
		if err := s.stock.Apply(ctx, tx, id, deltas, "SALE_STATUS"); err != nil {
			return err
		}
		changed = true
		return tx.UpdateStatus(ctx, id, string(to))
	})
	if err != nil {
		return Transaction{}, err
	}
	if changed {
		s.afterCommit(ctx, actorID, "status", TxTypeSale, id, stockMoved, map[string]any{"status": string(to)})
	}
	return s.repo.GetTransaction(ctx, TxTypeSale, id)
}

// ChangePurchaseStatus drives the purchase state machine. No stock
// moves on purchase status changes.
func (s *Service) ChangePurchaseStatus(ctx context.Context, id int64, to PurchaseStatus, actorID int64) (Transaction, error) {
	if !ValidPurchaseStatus(to) {
		return Transaction{}, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	var changed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetTransactionForUpdate(ctx, TxTypePurchase, id)
		if err != nil {
			return err
		}
		if PurchaseStatus(old.Status) == to {
			return nil
		}
		if _, err := PurchaseTransition(PurchaseStatus(old.Status), to); err != nil {
			return err
		}
		changed = true
		return tx.UpdateStatus(ctx, id, string(to))
	})
	if err != nil {
		return Transaction{}, err
	}
	if changed {
		s.afterCommit(ctx, actorID, "status", TxTypePurchase, id, false, map[string]any{"status": string(to)})
	}
	return s.repo.GetTransaction(ctx, TxTypePurchase, id)
}

func (s *Service) checkReferences(ctx context.Context, tx TxRepository, rules typeRules, partyID int64, items []LineItem) error {
	kind, err := tx.GetPartyKind(ctx, partyID)
	if err != nil {
		return err
	}
	if kind != rules.partyKind {
		return fmt.Errorf("%w: %s requires a %s", ErrPartyKind, rules.txType, rules.partyKind)
	}
	return s.checkProducts(ctx, tx, items)
}

func (s *Service) checkProducts(ctx context.Context, tx TxRepository, items []LineItem) error {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	missing, err := tx.MissingProducts(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: ids %v", ErrProductMissing, missing)
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, actorID int64, action string, txType TxType, id int64, stockMoved bool, meta map[string]any) {
	if stockMoved && s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   fmt.Sprintf("ledger:%s:%s", txType, action),
			Entity:   "transaction",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
		})
	}
}

func generateCode(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func validateInput(rules typeRules, items []LineItemInput, payments []PaymentInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	for _, item := range items {
		if item.ProductID == 0 {
			return fmt.Errorf("%w: item product required", ErrValidation)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be > 0", ErrValidation)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: item unit price must be >= 0", ErrValidation)
		}
		if item.DiscountPercent < 0 || item.DiscountPercent > 100 {
			return fmt.Errorf("%w: discount percent out of range", ErrValidation)
		}
		if item.TaxPercent < 0 || item.TaxPercent > 100 {
			return fmt.Errorf("%w: tax percent out of range", ErrValidation)
		}
	}
	if len(payments) > 0 && !rules.allowPayments {
		return fmt.Errorf("%w: %s carries no payments", ErrValidation, rules.txType)
	}
	for _, p := range payments {
		if p.Amount < 0 {
			return fmt.Errorf("%w: payment amount must be >= 0", ErrValidation)
		}
	}
	return nil
}
