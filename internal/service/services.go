package service

import (
	"github.com/kirinyoku/raffle-go/internal/draw"
	postgres "github.com/kirinyoku/raffle-go/internal/repository/postgres"
	redis "github.com/kirinyoku/raffle-go/internal/repository/redis"
	"github.com/kirinyoku/raffle-go/internal/service/query"
	"github.com/kirinyoku/raffle-go/internal/service/raffle"
)

type Services struct {
	Raffle *raffle.Service
	Query  *query.Service
}

type Config struct {
	Query query.Config
}

func NewServices(
	store *postgres.Store,
	coordinator *draw.Coordinator,
	announcer raffle.Announcer,
	limiter *redis.SlidingWindowLimiter,
	cache *redis.Cache,
	cfg Config,
) *Services {
	tickets := store.Tickets()
	rounds := store.Rounds()

	return &Services{
		Raffle: raffle.New(tickets, rounds, coordinator, announcer, limiter, cache),
		Query:  query.New(tickets, rounds, cache, cfg.Query),
	}
}
