package topics

const (
	// Bets
	JackpotBets = "jackpot-bets"

	// Rewards
	RewardGranted = "jackpot-rewards"

	// DLQs
	JackpotBetsDLQ = "jackpot-bets-dlq"

	// Redis Pub/Sub
	PoolUpdatesChannel = "jackpot_pool_updates"
)
