package evaluationqueue

// BattleJudgeJob asks a worker to run the automated judge for one pending
// battle.
type BattleJudgeJob struct {
	BattleID string `json:"battle_id"`
}

// Kind returns the job type identifier for River
func (BattleJudgeJob) Kind() string { return "battle_judge" }
