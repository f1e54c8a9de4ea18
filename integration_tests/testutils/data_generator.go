package testutils

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	evaluationservice "github.com/inf-monkeys/arena/app/modules/evaluation/application"
	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// TestDataGenerator produces randomized but reproducible inputs for
// integration tests.
type TestDataGenerator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewTestDataGenerator creates a generator with an optional fixed seed.
func NewTestDataGenerator(seed ...int64) *TestDataGenerator {
	var s int64
	if len(seed) > 0 {
		s = seed[0]
	} else {
		s = time.Now().UnixNano()
	}

	return &TestDataGenerator{
		faker: gofakeit.New(uint64(s)),
		seed:  s,
	}
}

// Seed returns the seed this generator was built with, for reproducing
// failures.
func (g *TestDataGenerator) Seed() int64 { return g.seed }

// AssetIDs generates n distinct asset identifiers.
func (g *TestDataGenerator) AssetIDs(n int) []evaluationtypes.AssetID {
	ids := make([]evaluationtypes.AssetID, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, evaluationtypes.AssetID(fmt.Sprintf("%s-%d", g.faker.AppName(), i)))
	}
	return ids
}

// ModuleInput generates a CreateModuleInput with the given participants.
func (g *TestDataGenerator) ModuleInput(assets []evaluationtypes.AssetID) evaluationservice.CreateModuleInput {
	return evaluationservice.CreateModuleInput{
		DisplayName:        g.faker.ProductName(),
		Description:        g.faker.Sentence(8),
		EvaluationCriteria: g.faker.Sentence(12),
		ParticipantAssets:  assets,
	}
}

// LLMEvaluatorInput generates a CreateEvaluatorInput for an automated judge.
func (g *TestDataGenerator) LLMEvaluatorInput() evaluationservice.CreateEvaluatorInput {
	return evaluationservice.CreateEvaluatorInput{
		Name:            g.faker.Name(),
		Type:            evaluationtypes.EvaluatorTypeLLM,
		LLMModelName:    "gpt-4o-mini",
		EvaluationFocus: g.faker.BuzzWord(),
	}
}

// HumanEvaluatorInput generates a CreateEvaluatorInput for a human judge.
func (g *TestDataGenerator) HumanEvaluatorInput() evaluationservice.CreateEvaluatorInput {
	return evaluationservice.CreateEvaluatorInput{
		Name:        g.faker.Name(),
		Type:        evaluationtypes.EvaluatorTypeHuman,
		HumanUserID: g.faker.Username(),
	}
}
