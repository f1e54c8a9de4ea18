package evaluationintegrationtests

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
	evaluationdb "github.com/inf-monkeys/arena/app/modules/evaluation/infrastructure/repositories"
)

func TestCreateAndFetchModule(t *testing.T) {
	deps := SetupTestEvaluationService(t)

	assets := deps.Generator.AssetIDs(3)
	input := deps.Generator.ModuleInput(assets)

	res, err := deps.Service.CreateModule(deps.Ctx, input)
	require.NoError(t, err)
	require.True(t, res.IsSuccess(), "expected success, got %+v", res)

	module, ok := res.Success.(*evaluationdb.EvaluationModule)
	require.True(t, ok)
	assert.Equal(t, input.DisplayName, module.DisplayName)
	assert.Equal(t, evaluationtypes.DefaultGlickoConfig, module.GlickoConfig)
	assert.Empty(t, cmp.Diff(assets, module.ParticipantAssetIDs))
	assert.True(t, module.IsActive)

	got, err := deps.Service.GetModule(deps.Ctx, module.ID)
	require.NoError(t, err)
	fetched, ok := got.Success.(*evaluationdb.EvaluationModule)
	require.True(t, ok)
	assert.Equal(t, module.ID, fetched.ID)
	assert.Empty(t, cmp.Diff(assets, fetched.ParticipantAssetIDs))

	list, err := deps.Service.ListModules(deps.Ctx, 1, 10, "")
	require.NoError(t, err)
	page, ok := list.Success.(*evaluationservice.ModuleListPayload)
	require.True(t, ok)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Modules, 1)
	assert.Equal(t, module.ID, page.Modules[0].ID)
}

func TestAddParticipants(t *testing.T) {
	deps := SetupTestEvaluationService(t)

	assets := deps.Generator.AssetIDs(2)
	res, err := deps.Service.CreateModule(deps.Ctx, deps.Generator.ModuleInput(assets))
	require.NoError(t, err)
	module := res.Success.(*evaluationdb.EvaluationModule)

	newcomer := deps.Generator.AssetIDs(1)[0]
	res, err = deps.Service.AddParticipants(deps.Ctx, module.ID, []evaluationtypes.AssetID{
		newcomer,
		assets[0], // already a participant, must not duplicate
	})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())

	updated := res.Success.(*evaluationdb.EvaluationModule)
	assert.Len(t, updated.ParticipantAssetIDs, 3)
	assert.Contains(t, updated.ParticipantAssetIDs, newcomer)
}

func TestEvaluatorLinking(t *testing.T) {
	deps := SetupTestEvaluationService(t)

	res, err := deps.Service.CreateModule(deps.Ctx, deps.Generator.ModuleInput(deps.Generator.AssetIDs(2)))
	require.NoError(t, err)
	module := res.Success.(*evaluationdb.EvaluationModule)

	res, err = deps.Service.CreateEvaluator(deps.Ctx, deps.Generator.LLMEvaluatorInput())
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	evaluator := res.Success.(*evaluationdb.Evaluator)
	assert.Equal(t, evaluationtypes.EvaluatorTypeLLM, evaluator.Type)

	res, err = deps.Service.LinkEvaluator(deps.Ctx, module.ID, evaluator.ID, 2.0)
	require.NoError(t, err)
	require.True(t, res.IsSuccess())

	linked, err := deps.Service.ListModuleEvaluators(deps.Ctx, module.ID, true)
	require.NoError(t, err)
	page := linked.Success.(*evaluationservice.EvaluatorListPayload)
	require.Len(t, page.Evaluators, 1)
	assert.Equal(t, evaluator.ID, page.Evaluators[0].ID)

	// Linking the same evaluator twice is a business failure, not an error.
	res, err = deps.Service.LinkEvaluator(deps.Ctx, module.ID, evaluator.ID, 1.0)
	require.NoError(t, err)
	assert.True(t, res.IsFailure())

	_, err = deps.Service.LinkEvaluator(deps.Ctx, module.ID, evaluationtypes.NewEvaluatorID(), 1.0)
	require.ErrorIs(t, err, evaluationservice.ErrNotFound)
}
