package ws

import "github.com/radieske/jackpot-platform-poc/internal/shared/pubsub"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// JackpotID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type      string `json:"type"`
	JackpotID string `json:"jackpotId"`
}

// PoolUpdate é o mesmo envelope publicado no Redis pelo worker e pelo serviço
type PoolUpdate = pubsub.WSUpdate
