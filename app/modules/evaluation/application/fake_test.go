package evaluationservice

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.opentelemetry.io/otel/trace/noop"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationmetrics "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/metrics"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
	"github.com/inf-monkeys/arena/internal/eventbus"
	"github.com/inf-monkeys/arena/internal/observability"
)

// ------------------------
// Fake Repository
// ------------------------

// FakeRepository provides a programmable stub for the evaluationdb.Repository
// interface.
type FakeRepository struct {
	trace []string

	CreateModuleFunc          func(ctx context.Context, db bun.IDB, module *evaluationdb.EvaluationModule) error
	GetModuleFunc             func(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID) (*evaluationdb.EvaluationModule, error)
	ListModulesFunc           func(ctx context.Context, db bun.IDB, page, limit int, search string) ([]evaluationdb.EvaluationModule, int, error)
	AddParticipantsFunc       func(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID) error
	CreateEvaluatorFunc       func(ctx context.Context, db bun.IDB, evaluator *evaluationdb.Evaluator) error
	GetEvaluatorFunc          func(ctx context.Context, db bun.IDB, id evaluationtypes.EvaluatorID) (*evaluationdb.Evaluator, error)
	ListEvaluatorsFunc        func(ctx context.Context, db bun.IDB, page, limit int, search string) ([]evaluationdb.Evaluator, int, error)
	LinkEvaluatorFunc         func(ctx context.Context, db bun.IDB, link *evaluationdb.ModuleEvaluator) error
	ListModuleEvaluatorsFunc  func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, activeOnly bool) ([]evaluationdb.Evaluator, error)
	InsertBattleGroupFunc     func(ctx context.Context, db bun.IDB, group *evaluationdb.BattleGroup) error
	InsertBattlesFunc         func(ctx context.Context, db bun.IDB, battles []*evaluationdb.EvaluationBattle) error
	GetBattleGroupFunc        func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID) (*evaluationdb.BattleGroup, error)
	ListBattleGroupsFunc      func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, page, limit int) ([]evaluationdb.BattleGroup, int, error)
	GetBattleFunc             func(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error)
	ListGroupBattlesFunc      func(ctx context.Context, db bun.IDB, groupID evaluationtypes.BattleGroupID, pendingOnly bool) ([]evaluationdb.EvaluationBattle, error)
	ListModuleBattlesFunc     func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, page, limit int) ([]evaluationdb.EvaluationBattle, int, error)
	MarkBattleResolvedFunc    func(ctx context.Context, db bun.IDB, battle *evaluationdb.EvaluationBattle) error
	MarkBattleFailedFunc      func(ctx context.Context, db bun.IDB, battleID evaluationtypes.BattleID, reason string) error
	BumpGroupCountersFunc     func(ctx context.Context, db bun.IDB, groupID evaluationtypes.BattleGroupID, completedDelta, failedDelta int, failureThreshold float64) (*evaluationdb.BattleGroup, error)
	LockScorePairFunc         func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetA, assetB evaluationtypes.AssetID) (*evaluationdb.LeaderboardScore, *evaluationdb.LeaderboardScore, error)
	UpdateScoreFunc           func(ctx context.Context, db bun.IDB, score *evaluationdb.LeaderboardScore) error
	LeaderboardPageFunc       func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, q evaluationdb.LeaderboardQuery) ([]evaluationdb.LeaderboardRow, int, error)
	LeaderboardStatsFunc      func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, evaluatorKey string) (*evaluationdb.LeaderboardStats, error)
	RecentBattlesFunc         func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, since time.Time, limit int) ([]evaluationdb.EvaluationBattle, error)
	AssetBattleHistoryFunc    func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetID evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) ([]evaluationdb.EvaluationBattle, error)
	CountCompletedBattlesFunc func(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID) (int, error)
}

// NewFakeRepository initializes a new FakeRepository with an empty trace.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{trace: []string{}}
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeRepository) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRepository) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeRepository) CreateModule(ctx context.Context, db bun.IDB, module *evaluationdb.EvaluationModule) error {
	f.record("CreateModule")
	if f.CreateModuleFunc != nil {
		return f.CreateModuleFunc(ctx, db, module)
	}
	if module.ID == (evaluationtypes.ModuleID{}) {
		module.ID = evaluationtypes.NewModuleID()
	}
	return nil
}

func (f *FakeRepository) GetModule(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID) (*evaluationdb.EvaluationModule, error) {
	f.record("GetModule")
	if f.GetModuleFunc != nil {
		return f.GetModuleFunc(ctx, db, id)
	}
	return nil, evaluationdb.ErrNotFound
}

func (f *FakeRepository) ListModules(ctx context.Context, db bun.IDB, page, limit int, search string) ([]evaluationdb.EvaluationModule, int, error) {
	f.record("ListModules")
	if f.ListModulesFunc != nil {
		return f.ListModulesFunc(ctx, db, page, limit, search)
	}
	return nil, 0, nil
}

func (f *FakeRepository) AddParticipants(ctx context.Context, db bun.IDB, id evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID) error {
	f.record("AddParticipants")
	if f.AddParticipantsFunc != nil {
		return f.AddParticipantsFunc(ctx, db, id, assetIDs)
	}
	return nil
}

func (f *FakeRepository) CreateEvaluator(ctx context.Context, db bun.IDB, evaluator *evaluationdb.Evaluator) error {
	f.record("CreateEvaluator")
	if f.CreateEvaluatorFunc != nil {
		return f.CreateEvaluatorFunc(ctx, db, evaluator)
	}
	if evaluator.ID == (evaluationtypes.EvaluatorID{}) {
		evaluator.ID = evaluationtypes.NewEvaluatorID()
	}
	return nil
}

func (f *FakeRepository) GetEvaluator(ctx context.Context, db bun.IDB, id evaluationtypes.EvaluatorID) (*evaluationdb.Evaluator, error) {
	f.record("GetEvaluator")
	if f.GetEvaluatorFunc != nil {
		return f.GetEvaluatorFunc(ctx, db, id)
	}
	return nil, evaluationdb.ErrNotFound
}

func (f *FakeRepository) ListEvaluators(ctx context.Context, db bun.IDB, page, limit int, search string) ([]evaluationdb.Evaluator, int, error) {
	f.record("ListEvaluators")
	if f.ListEvaluatorsFunc != nil {
		return f.ListEvaluatorsFunc(ctx, db, page, limit, search)
	}
	return nil, 0, nil
}

func (f *FakeRepository) LinkEvaluator(ctx context.Context, db bun.IDB, link *evaluationdb.ModuleEvaluator) error {
	f.record("LinkEvaluator")
	if f.LinkEvaluatorFunc != nil {
		return f.LinkEvaluatorFunc(ctx, db, link)
	}
	return nil
}

func (f *FakeRepository) ListModuleEvaluators(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, activeOnly bool) ([]evaluationdb.Evaluator, error) {
	f.record("ListModuleEvaluators")
	if f.ListModuleEvaluatorsFunc != nil {
		return f.ListModuleEvaluatorsFunc(ctx, db, moduleID, activeOnly)
	}
	return nil, nil
}

func (f *FakeRepository) InsertBattleGroup(ctx context.Context, db bun.IDB, group *evaluationdb.BattleGroup) error {
	f.record("InsertBattleGroup")
	if f.InsertBattleGroupFunc != nil {
		return f.InsertBattleGroupFunc(ctx, db, group)
	}
	if group.ID == (evaluationtypes.BattleGroupID{}) {
		group.ID = evaluationtypes.NewBattleGroupID()
	}
	return nil
}

func (f *FakeRepository) InsertBattles(ctx context.Context, db bun.IDB, battles []*evaluationdb.EvaluationBattle) error {
	f.record("InsertBattles")
	if f.InsertBattlesFunc != nil {
		return f.InsertBattlesFunc(ctx, db, battles)
	}
	for _, b := range battles {
		if b.ID == (evaluationtypes.BattleID{}) {
			b.ID = evaluationtypes.NewBattleID()
		}
	}
	return nil
}

func (f *FakeRepository) GetBattleGroup(ctx context.Context, db bun.IDB, id evaluationtypes.BattleGroupID) (*evaluationdb.BattleGroup, error) {
	f.record("GetBattleGroup")
	if f.GetBattleGroupFunc != nil {
		return f.GetBattleGroupFunc(ctx, db, id)
	}
	return nil, evaluationdb.ErrNotFound
}

func (f *FakeRepository) ListBattleGroups(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, page, limit int) ([]evaluationdb.BattleGroup, int, error) {
	f.record("ListBattleGroups")
	if f.ListBattleGroupsFunc != nil {
		return f.ListBattleGroupsFunc(ctx, db, moduleID, page, limit)
	}
	return nil, 0, nil
}

func (f *FakeRepository) GetBattle(ctx context.Context, db bun.IDB, id evaluationtypes.BattleID) (*evaluationdb.EvaluationBattle, error) {
	f.record("GetBattle")
	if f.GetBattleFunc != nil {
		return f.GetBattleFunc(ctx, db, id)
	}
	return nil, evaluationdb.ErrNotFound
}

func (f *FakeRepository) ListGroupBattles(ctx context.Context, db bun.IDB, groupID evaluationtypes.BattleGroupID, pendingOnly bool) ([]evaluationdb.EvaluationBattle, error) {
	f.record("ListGroupBattles")
	if f.ListGroupBattlesFunc != nil {
		return f.ListGroupBattlesFunc(ctx, db, groupID, pendingOnly)
	}
	return nil, nil
}

func (f *FakeRepository) ListModuleBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, page, limit int) ([]evaluationdb.EvaluationBattle, int, error) {
	f.record("ListModuleBattles")
	if f.ListModuleBattlesFunc != nil {
		return f.ListModuleBattlesFunc(ctx, db, moduleID, page, limit)
	}
	return nil, 0, nil
}

func (f *FakeRepository) MarkBattleResolved(ctx context.Context, db bun.IDB, battle *evaluationdb.EvaluationBattle) error {
	f.record("MarkBattleResolved")
	if f.MarkBattleResolvedFunc != nil {
		return f.MarkBattleResolvedFunc(ctx, db, battle)
	}
	return nil
}

func (f *FakeRepository) MarkBattleFailed(ctx context.Context, db bun.IDB, battleID evaluationtypes.BattleID, reason string) error {
	f.record("MarkBattleFailed")
	if f.MarkBattleFailedFunc != nil {
		return f.MarkBattleFailedFunc(ctx, db, battleID, reason)
	}
	return nil
}

func (f *FakeRepository) BumpGroupCounters(ctx context.Context, db bun.IDB, groupID evaluationtypes.BattleGroupID, completedDelta, failedDelta int, failureThreshold float64) (*evaluationdb.BattleGroup, error) {
	f.record("BumpGroupCounters")
	if f.BumpGroupCountersFunc != nil {
		return f.BumpGroupCountersFunc(ctx, db, groupID, completedDelta, failedDelta, failureThreshold)
	}
	return &evaluationdb.BattleGroup{ID: groupID, Status: evaluationtypes.GroupStatusInProgress}, nil
}

func (f *FakeRepository) LockScorePair(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetA, assetB evaluationtypes.AssetID) (*evaluationdb.LeaderboardScore, *evaluationdb.LeaderboardScore, error) {
	f.record("LockScorePair")
	if f.LockScorePairFunc != nil {
		return f.LockScorePairFunc(ctx, db, moduleID, assetA, assetB)
	}
	return &evaluationdb.LeaderboardScore{ModuleID: moduleID, AssetID: assetA, ScoresByEvaluator: evaluationtypes.ScoresByEvaluator{}},
		&evaluationdb.LeaderboardScore{ModuleID: moduleID, AssetID: assetB, ScoresByEvaluator: evaluationtypes.ScoresByEvaluator{}},
		nil
}

func (f *FakeRepository) UpdateScore(ctx context.Context, db bun.IDB, score *evaluationdb.LeaderboardScore) error {
	f.record("UpdateScore")
	if f.UpdateScoreFunc != nil {
		return f.UpdateScoreFunc(ctx, db, score)
	}
	return nil
}

func (f *FakeRepository) LeaderboardPage(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, q evaluationdb.LeaderboardQuery) ([]evaluationdb.LeaderboardRow, int, error) {
	f.record("LeaderboardPage")
	if f.LeaderboardPageFunc != nil {
		return f.LeaderboardPageFunc(ctx, db, moduleID, q)
	}
	return nil, 0, nil
}

func (f *FakeRepository) LeaderboardStats(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, evaluatorKey string) (*evaluationdb.LeaderboardStats, error) {
	f.record("LeaderboardStats")
	if f.LeaderboardStatsFunc != nil {
		return f.LeaderboardStatsFunc(ctx, db, moduleID, evaluatorKey)
	}
	return &evaluationdb.LeaderboardStats{}, nil
}

func (f *FakeRepository) RecentBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, since time.Time, limit int) ([]evaluationdb.EvaluationBattle, error) {
	f.record("RecentBattles")
	if f.RecentBattlesFunc != nil {
		return f.RecentBattlesFunc(ctx, db, moduleID, since, limit)
	}
	return nil, nil
}

func (f *FakeRepository) AssetBattleHistory(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID, assetID evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) ([]evaluationdb.EvaluationBattle, error) {
	f.record("AssetBattleHistory")
	if f.AssetBattleHistoryFunc != nil {
		return f.AssetBattleHistoryFunc(ctx, db, moduleID, assetID, evaluatorID, limit)
	}
	return nil, nil
}

func (f *FakeRepository) CountCompletedBattles(ctx context.Context, db bun.IDB, moduleID evaluationtypes.ModuleID) (int, error) {
	f.record("CountCompletedBattles")
	if f.CountCompletedBattlesFunc != nil {
		return f.CountCompletedBattlesFunc(ctx, db, moduleID)
	}
	return 0, nil
}

var _ evaluationdb.Repository = (*FakeRepository)(nil)

// ------------------------
// Fake EventBus / Judge / Queue
// ------------------------

// FakeEventBus records published topics.
type FakeEventBus struct {
	Published   []string
	PublishFunc func(ctx context.Context, topic string, msg *message.Message) error
}

func (f *FakeEventBus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	f.Published = append(f.Published, topic)
	if f.PublishFunc != nil {
		return f.PublishFunc(ctx, topic, msg)
	}
	return nil
}

func (f *FakeEventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return nil, errors.New("not implemented")
}

func (f *FakeEventBus) Close() error { return nil }

// FakeJudge returns a programmable verdict.
type FakeJudge struct {
	Calls     []JudgeRequest
	JudgeFunc func(ctx context.Context, req JudgeRequest) (JudgeVerdict, error)
}

func (f *FakeJudge) Judge(ctx context.Context, req JudgeRequest) (JudgeVerdict, error) {
	f.Calls = append(f.Calls, req)
	if f.JudgeFunc != nil {
		return f.JudgeFunc(ctx, req)
	}
	return JudgeVerdict{Result: evaluationtypes.BattleResultAWin, Reason: "fake verdict"}, nil
}

// FakeQueue records enqueued battles.
type FakeQueue struct {
	Enqueued    []evaluationtypes.BattleID
	EnqueueFunc func(ctx context.Context, battleID evaluationtypes.BattleID) error
}

func (f *FakeQueue) EnqueueBattleJudging(ctx context.Context, battleID evaluationtypes.BattleID) error {
	f.Enqueued = append(f.Enqueued, battleID)
	if f.EnqueueFunc != nil {
		return f.EnqueueFunc(ctx, battleID)
	}
	return nil
}

// FakeMetrics counts operation outcomes; everything else is inherited from
// the no-op implementation.
type FakeMetrics struct {
	evaluationmetrics.NoOpMetrics
	Attempts  int
	Successes int
	Failures  int
}

func (m *FakeMetrics) RecordOperationAttempt(context.Context, string, evaluationtypes.ModuleID) {
	m.Attempts++
}

func (m *FakeMetrics) RecordOperationSuccess(context.Context, string, evaluationtypes.ModuleID) {
	m.Successes++
}

func (m *FakeMetrics) RecordOperationFailure(context.Context, string, evaluationtypes.ModuleID) {
	m.Failures++
}

// ------------------------
// Test database
// ------------------------

// The service runs its writes through bun transactions. The fake connector
// below hands out connections whose transactions are no-ops, so transaction
// plumbing works while every query goes through the FakeRepository.
type fakeConnector struct{}

func (fakeConnector) Connect(context.Context) (driver.Conn, error) { return &fakeConn{}, nil }
func (fakeConnector) Driver() driver.Driver                        { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{}, nil }

type fakeConn struct{}

func (*fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (*fakeConn) Close() error                        { return nil }
func (*fakeConn) Begin() (driver.Tx, error)           { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

func newTestDB() *bun.DB {
	return bun.NewDB(sql.OpenDB(fakeConnector{}), pgdialect.New())
}

func newTestService(repo *FakeRepository, bus *FakeEventBus, judge Judge, queue BattleQueue) *EvaluationService {
	tracer := noop.NewTracerProvider().Tracer("test")
	var eb eventbus.EventBus
	if bus != nil {
		eb = bus
	}
	return NewEvaluationService(repo, newTestDB(), eb, judge, queue, observability.NoOpLogger, evaluationmetrics.NoOpMetrics{}, tracer)
}
