// Package glicko implements the Glicko-2 rating update for a single pairwise
// battle.
//
// Variable names follow Glickman's paper (https://www.glicko.net/glicko/glicko2.pdf):
// mu is the rating on the internal scale, phi the deviation, sigma the
// volatility, tau the volatility change constraint. Both sides of a battle
// are updated from the same pre-battle snapshot; neither update observes the
// other's result.
package glicko

import (
	"math"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// Outcome is a battle result seen from one side's perspective.
type Outcome float64

const (
	OutcomeLoss Outcome = 0
	OutcomeDraw Outcome = 0.5
	OutcomeWin  Outcome = 1
)

// Opposite returns the outcome as seen by the other side.
func (o Outcome) Opposite() Outcome { return 1 - o }

// OutcomesFor maps a judged battle result to the (A, B) outcome pair.
func OutcomesFor(result evaluationtypes.BattleResult) (a, b Outcome) {
	switch result {
	case evaluationtypes.BattleResultAWin:
		return OutcomeWin, OutcomeLoss
	case evaluationtypes.BattleResultBWin:
		return OutcomeLoss, OutcomeWin
	default:
		return OutcomeDraw, OutcomeDraw
	}
}

const (
	// scale converts between the public rating scale and the internal
	// Glicko-2 scale.
	scale = 173.7178

	// convergence tolerance for the volatility iteration.
	epsilon = 1e-6

	// maxIterations bounds the volatility root-finding. If it does not
	// converge the previous volatility is kept rather than diverging.
	maxIterations = 100

	// rdFloor keeps the deviation from collapsing to the point where the
	// system stops responding to new results.
	rdFloor = 30.0

	// rdCeiling matches the conventional maximum deviation of an unrated
	// player.
	rdCeiling = 350.0
)

// Update applies one battle result to both participants and returns their new
// ratings. The inputs are the pre-battle snapshot; tau comes from the
// module's Glicko config.
func Update(a, b evaluationtypes.GlickoRating, result evaluationtypes.BattleResult, tau float64) (newA, newB evaluationtypes.GlickoRating) {
	outcomeA, outcomeB := OutcomesFor(result)
	newA = updateOne(a, b, outcomeA, tau)
	newB = updateOne(b, a, outcomeB, tau)
	return newA, newB
}

// updateOne runs steps 1-8 of the Glicko-2 algorithm for one player against
// one opponent.
func updateOne(player, opponent evaluationtypes.GlickoRating, score Outcome, tau float64) evaluationtypes.GlickoRating {
	if tau <= 0 {
		tau = evaluationtypes.DefaultGlickoConfig.Tau
	}

	// Step 2: convert to the internal scale.
	mu := (player.Rating - 1500) / scale
	phi := player.RD / scale
	oppMu := (opponent.Rating - 1500) / scale
	oppPhi := opponent.RD / scale

	// Step 3: estimated variance from the single outcome.
	g := 1 / math.Sqrt(1+3*oppPhi*oppPhi/(math.Pi*math.Pi))
	e := 1 / (1 + math.Exp(-g*(mu-oppMu)))
	v := 1 / (g * g * e * (1 - e))

	// Step 4: estimated improvement.
	delta := v * g * (float64(score) - e)

	// Step 5: new volatility.
	sigma := newVolatility(player.Vol, delta, phi, v, tau)

	// Steps 6-7: new deviation and rating.
	phiStar := math.Sqrt(phi*phi + sigma*sigma)
	newPhi := 1 / math.Sqrt(1/(phiStar*phiStar)+1/v)
	newMu := mu + newPhi*newPhi*g*(float64(score)-e)

	// Step 8: back to the public scale, with the deviation clamped.
	rd := newPhi * scale
	if rd < rdFloor {
		rd = rdFloor
	}
	if rd > rdCeiling {
		rd = rdCeiling
	}

	return evaluationtypes.GlickoRating{
		Rating: scale*newMu + 1500,
		RD:     rd,
		Vol:    sigma,
	}
}

// newVolatility solves the Glicko-2 convergence equation with the Illinois
// variant of regula falsi. It fails closed: if the iteration budget runs out
// before |B-A| <= epsilon, the previous volatility is returned unchanged.
func newVolatility(sigma, delta, phi, v, tau float64) float64 {
	a := math.Log(sigma * sigma)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phi*phi - v - ex)
		den := 2 * (phi*phi + v + ex) * (phi*phi + v + ex)
		return num/den - (x-a)/(tau*tau)
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 {
			k++
			if k > maxIterations {
				return sigma
			}
		}
		B = a - k*tau
	}

	fA := f(A)
	fB := f(B)
	for i := 0; math.Abs(B-A) > epsilon; i++ {
		if i >= maxIterations {
			return sigma
		}
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if fC*fB <= 0 {
			A = B
			fA = fB
		} else {
			fA /= 2
		}
		B = C
		fB = fC
	}

	return math.Exp(A / 2)
}
