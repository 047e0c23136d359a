package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"token-settlement-gateway/internal/core/domain"
	"token-settlement-gateway/internal/core/ports"
	"token-settlement-gateway/internal/core/ports/mocks"
	"token-settlement-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	ownerAddr    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	merchantAddr = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	holderAddr   = "0xcccccccccccccccccccccccccccccccccccccccc"
)

type engineTestDeps struct {
	svc        *SettlementEngineImpl
	accounts   *mocks.MockAccountRepository
	roles      *mocks.MockRoleRegistry
	ledger     *mocks.MockBalanceLedger
	journal    *mocks.MockSettlementJournal
	idempCache *mocks.MockIdempotencyCache
	hashSvc    *mocks.MockHashService
	transactor *mocks.MockDBTransactor
	kicked     *int
	ctrl       *gomock.Controller
}

func setupEngine(t *testing.T) *engineTestDeps {
	ctrl := gomock.NewController(t)
	kicked := 0
	d := &engineTestDeps{
		accounts:   mocks.NewMockAccountRepository(ctrl),
		roles:      mocks.NewMockRoleRegistry(ctrl),
		ledger:     mocks.NewMockBalanceLedger(ctrl),
		journal:    mocks.NewMockSettlementJournal(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		hashSvc:    mocks.NewMockHashService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		kicked:     &kicked,
		ctrl:       ctrl,
	}
	d.svc = NewSettlementEngine(
		d.accounts, d.roles, d.ledger, d.journal,
		d.idempCache, d.hashSvc, d.transactor,
		func() { kicked++ },
		zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// stubJournalCreate fills in the committed sequence like the real journal does.
func stubJournalCreate(seq int64) func(context.Context, pgx.Tx, *domain.Settlement) error {
	return func(_ context.Context, _ pgx.Tx, s *domain.Settlement) error {
		s.Sequence = seq
		s.CreatedAt = time.Now().UTC()
		return nil
	}
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

// ==================== CashIn Tests ====================

func TestSettlementEngine_CashIn_Success(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	idempKey := domain.BuildSettlementKey(ownerAddr, "DEP-001")
	d.idempCache.EXPECT().Get(ctx, idempKey).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.roles.EXPECT().RoleOfInTx(ctx, tx, ownerAddr).Return(domain.RoleOwner, nil)
	d.ledger.EXPECT().AddBalance(ctx, tx, holderAddr, int64(1000)).Return(nil)
	d.journal.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(stubJournalCreate(7))
	d.idempCache.EXPECT().Set(ctx, idempKey, gomock.Any(), settlementIdempotencyTTL).Return(nil)

	stl, err := d.svc.CashIn(ctx, ports.CashInRequest{
		Caller:      ownerAddr,
		Target:      holderAddr,
		Amount:      1000,
		ReferenceID: "DEP-001",
	})
	require.NoError(t, err)
	require.NotNil(t, stl)
	assert.Equal(t, domain.SettlementTypeCashIn, stl.Type)
	assert.Equal(t, int64(7), stl.Sequence)
	assert.Equal(t, holderAddr, stl.Target)
	assert.Equal(t, ownerAddr, stl.AuthorizedBy)
	assert.Equal(t, int64(1000), stl.Amount)
	assert.Zero(t, *d.kicked, "cash-in must not wake the cash-out dispatcher")
}

func TestSettlementEngine_CashIn_MerchantRejected(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.roles.EXPECT().RoleOfInTx(ctx, tx, merchantAddr).Return(domain.RoleMerchant, nil)

	stl, err := d.svc.CashIn(ctx, ports.CashInRequest{
		Caller:      merchantAddr,
		Target:      holderAddr,
		Amount:      500,
		ReferenceID: "DEP-002",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_001")
}

func TestSettlementEngine_CashIn_NoRoleRejected(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.roles.EXPECT().RoleOfInTx(ctx, tx, holderAddr).Return(domain.RoleNone, nil)

	stl, err := d.svc.CashIn(ctx, ports.CashInRequest{
		Caller:      holderAddr,
		Target:      holderAddr,
		Amount:      500,
		ReferenceID: "DEP-003",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_001")
}

func TestSettlementEngine_CashIn_InvalidAmount(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	for _, amount := range []int64{0, -50} {
		stl, err := d.svc.CashIn(context.Background(), ports.CashInRequest{
			Caller: ownerAddr,
			Target: holderAddr,
			Amount: amount,
		})
		assert.Nil(t, stl)
		assertAppError(t, err, "SET_003")
	}
}

func TestSettlementEngine_CashIn_InvalidTarget(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	stl, err := d.svc.CashIn(context.Background(), ports.CashInRequest{
		Caller: ownerAddr,
		Target: "not-an-address",
		Amount: 100,
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_003")
}

func TestSettlementEngine_CashIn_CachedReceiptReplayed(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	cached := &domain.Settlement{
		ID:           uuid.New(),
		Sequence:     3,
		Type:         domain.SettlementTypeCashIn,
		Target:       holderAddr,
		Amount:       1000,
		AuthorizedBy: ownerAddr,
		ReferenceID:  "DEP-001",
	}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	idempKey := domain.BuildSettlementKey(ownerAddr, "DEP-001")
	d.idempCache.EXPECT().Get(ctx, idempKey).Return(payload, nil)

	stl, err := d.svc.CashIn(ctx, ports.CashInRequest{
		Caller:      ownerAddr,
		Target:      holderAddr,
		Amount:      1000,
		ReferenceID: "DEP-001",
	})
	require.NoError(t, err)
	assert.Equal(t, cached.Sequence, stl.Sequence)
	assert.Equal(t, cached.ID, stl.ID)
}

func TestSettlementEngine_CashIn_DuplicateReference(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.roles.EXPECT().RoleOfInTx(ctx, tx, ownerAddr).Return(domain.RoleOwner, nil)
	d.ledger.EXPECT().AddBalance(ctx, tx, holderAddr, int64(100)).Return(nil)
	d.journal.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrDuplicateReference)

	stl, err := d.svc.CashIn(ctx, ports.CashInRequest{
		Caller:      ownerAddr,
		Target:      holderAddr,
		Amount:      100,
		ReferenceID: "DEP-REPLAY",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_005")
}

// ==================== CashOut (self-service) Tests ====================

func cashOutHappyPath(d *engineTestDeps, ctx context.Context, tx pgx.Tx, target string, balance, amount, seq int64) {
	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledger.EXPECT().GetBalanceForUpdate(ctx, tx, target).Return(balance, nil)
	d.ledger.EXPECT().SubtractBalance(ctx, tx, target, amount).Return(nil)
	d.journal.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(stubJournalCreate(seq))
	d.idempCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), settlementIdempotencyTTL).Return(nil)
}

func TestSettlementEngine_CashOut_Success(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.accounts.EXPECT().GetByAddress(ctx, holderAddr).Return(&domain.Account{
		Address:      holderAddr,
		PasswordHash: "argon2-hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("hunter22", "argon2-hash").Return(true, nil)
	cashOutHappyPath(d, ctx, tx, holderAddr, 700, 500, 11)

	stl, err := d.svc.CashOut(ctx, ports.CashOutRequest{
		Caller:      holderAddr,
		Amount:      500,
		BankAccount: "NL91ABNA0417164300",
		Password:    "hunter22",
		ReferenceID: "WD-001",
	})
	require.NoError(t, err)
	require.NotNil(t, stl)
	assert.Equal(t, domain.SettlementTypeCashOut, stl.Type)
	assert.Equal(t, int64(500), stl.Amount)
	assert.Equal(t, holderAddr, stl.Target)
	assert.Equal(t, holderAddr, stl.AuthorizedBy)
	assert.Equal(t, "NL91ABNA0417164300", stl.BankAccount)
	assert.Equal(t, 1, *d.kicked, "committed cash-out must wake the dispatcher once")
}

func TestSettlementEngine_CashOut_InsufficientFunds(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.accounts.EXPECT().GetByAddress(ctx, holderAddr).Return(&domain.Account{
		Address:      holderAddr,
		PasswordHash: "argon2-hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("hunter22", "argon2-hash").Return(true, nil)
	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledger.EXPECT().GetBalanceForUpdate(ctx, tx, holderAddr).Return(int64(100), nil)

	stl, err := d.svc.CashOut(ctx, ports.CashOutRequest{
		Caller:      holderAddr,
		Amount:      200,
		BankAccount: "NL91ABNA0417164300",
		Password:    "hunter22",
		ReferenceID: "WD-002",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_002")
	assert.Zero(t, *d.kicked, "a rejected cash-out must not emit an event")
}

func TestSettlementEngine_CashOut_WrongPassword(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.accounts.EXPECT().GetByAddress(ctx, holderAddr).Return(&domain.Account{
		Address:      holderAddr,
		PasswordHash: "argon2-hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("wrong", "argon2-hash").Return(false, nil)

	stl, err := d.svc.CashOut(ctx, ports.CashOutRequest{
		Caller:      holderAddr,
		Amount:      100,
		BankAccount: "NL91ABNA0417164300",
		Password:    "wrong",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "AUTH_001")
}

func TestSettlementEngine_CashOut_UnknownAccount(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.accounts.EXPECT().GetByAddress(ctx, holderAddr).Return(nil, nil)

	stl, err := d.svc.CashOut(ctx, ports.CashOutRequest{
		Caller:      holderAddr,
		Amount:      100,
		BankAccount: "NL91ABNA0417164300",
		Password:    "hunter22",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "AUTH_001")
}

func TestSettlementEngine_CashOut_RaceLostOnDebit(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.accounts.EXPECT().GetByAddress(ctx, holderAddr).Return(&domain.Account{
		Address:      holderAddr,
		PasswordHash: "argon2-hash",
	}, nil)
	d.hashSvc.EXPECT().Verify("hunter22", "argon2-hash").Return(true, nil)
	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledger.EXPECT().GetBalanceForUpdate(ctx, tx, holderAddr).Return(int64(500), nil)
	// The conditional debit still guards the invariant if the balance moved.
	d.ledger.EXPECT().SubtractBalance(ctx, tx, holderAddr, int64(500)).Return(ports.ErrInsufficientBalance)

	stl, err := d.svc.CashOut(ctx, ports.CashOutRequest{
		Caller:      holderAddr,
		Amount:      500,
		BankAccount: "NL91ABNA0417164300",
		Password:    "hunter22",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_002")
}

// ==================== CashOutFor (privileged) Tests ====================

func TestSettlementEngine_CashOutFor_MerchantSuccess(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.roles.EXPECT().RoleOfInTx(ctx, tx, merchantAddr).Return(domain.RoleMerchant, nil)
	d.ledger.EXPECT().GetBalanceForUpdate(ctx, tx, holderAddr).Return(int64(700), nil)
	d.ledger.EXPECT().SubtractBalance(ctx, tx, holderAddr, int64(500)).Return(nil)
	d.journal.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(stubJournalCreate(12))
	d.idempCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), settlementIdempotencyTTL).Return(nil)

	stl, err := d.svc.CashOutFor(ctx, ports.CashOutForRequest{
		Caller:      merchantAddr,
		Target:      holderAddr,
		Amount:      500,
		BankAccount: "NL91ABNA0417164300",
		ReferenceID: "WD-100",
	})
	require.NoError(t, err)
	require.NotNil(t, stl)
	assert.Equal(t, holderAddr, stl.Target)
	assert.Equal(t, merchantAddr, stl.AuthorizedBy)
	assert.Equal(t, 1, *d.kicked)
}

func TestSettlementEngine_CashOutFor_OwnerSuccess(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.roles.EXPECT().RoleOfInTx(ctx, tx, ownerAddr).Return(domain.RoleOwner, nil)
	d.ledger.EXPECT().GetBalanceForUpdate(ctx, tx, holderAddr).Return(int64(300), nil)
	d.ledger.EXPECT().SubtractBalance(ctx, tx, holderAddr, int64(300)).Return(nil)
	d.journal.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(stubJournalCreate(13))
	d.idempCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), settlementIdempotencyTTL).Return(nil)

	stl, err := d.svc.CashOutFor(ctx, ports.CashOutForRequest{
		Caller:      ownerAddr,
		Target:      holderAddr,
		Amount:      300,
		BankAccount: "DE89370400440532013000",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), stl.Amount)
}

func TestSettlementEngine_CashOutFor_NoRoleRejected(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.roles.EXPECT().RoleOfInTx(ctx, tx, holderAddr).Return(domain.RoleNone, nil)

	stl, err := d.svc.CashOutFor(ctx, ports.CashOutForRequest{
		Caller:      holderAddr,
		Target:      merchantAddr,
		Amount:      100,
		BankAccount: "NL91ABNA0417164300",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_001")
	assert.Zero(t, *d.kicked)
}

func TestSettlementEngine_CashOutFor_DuplicateReference(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.roles.EXPECT().RoleOfInTx(ctx, tx, merchantAddr).Return(domain.RoleMerchant, nil)
	d.ledger.EXPECT().GetBalanceForUpdate(ctx, tx, holderAddr).Return(int64(700), nil)
	d.ledger.EXPECT().SubtractBalance(ctx, tx, holderAddr, int64(500)).Return(nil)
	d.journal.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrDuplicateReference)

	stl, err := d.svc.CashOutFor(ctx, ports.CashOutForRequest{
		Caller:      merchantAddr,
		Target:      holderAddr,
		Amount:      500,
		BankAccount: "NL91ABNA0417164300",
		ReferenceID: "WD-100",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_005")
	assert.Zero(t, *d.kicked)
}

func TestSettlementEngine_CashOutFor_InvalidAmount(t *testing.T) {
	d := setupEngine(t)
	defer d.ctrl.Finish()

	stl, err := d.svc.CashOutFor(context.Background(), ports.CashOutForRequest{
		Caller:      merchantAddr,
		Target:      holderAddr,
		Amount:      -1,
		BankAccount: "NL91ABNA0417164300",
	})
	assert.Nil(t, stl)
	assertAppError(t, err, "SET_003")
}
