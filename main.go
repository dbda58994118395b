package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	capabilityx "github.com/shoptalklabs/shoptalk/agent/capability"
	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	draftx "github.com/shoptalklabs/shoptalk/agent/draft"
	llmx "github.com/shoptalklabs/shoptalk/agent/llm"
	memoryx "github.com/shoptalklabs/shoptalk/agent/memory"
	orchestratorx "github.com/shoptalklabs/shoptalk/agent/orchestrator"
	plannerx "github.com/shoptalklabs/shoptalk/agent/planner"
	promptx "github.com/shoptalklabs/shoptalk/agent/prompt"
	serverx "github.com/shoptalklabs/shoptalk/internal/server"
	authx "github.com/shoptalklabs/shoptalk/pkg/auth"
	configx "github.com/shoptalklabs/shoptalk/pkg/config"
	_ "github.com/shoptalklabs/shoptalk/pkg/logger/autoload"
	openrouterx "github.com/shoptalklabs/shoptalk/pkg/openrouter"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}
	mongoCfg := configx.MustNew[storex.MongoConfig]("MONGO")
	authCfg := configx.MustNew[authx.Config]("JWT")
	serverCfg := configx.MustNew[serverx.Config]("HTTP")

	store, err := storex.NewMongoStore(ctx, *mongoCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to mongodb")
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("close mongodb")
		}
	}()

	prompts := promptx.LoadPromptSet()

	plannerCfg := llmCfg.OpenRouterFor(llmx.ComponentPlanner)
	if err := openrouterx.Ping(ctx, plannerCfg); err != nil {
		log.Fatal().Err(err).Msg("openrouter credential check")
	}
	plannerModel, err := plannerCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build planner model")
	}
	synthCfg := llmCfg.OpenRouterFor(llmx.ComponentSynthesizer)
	synthModel, err := synthCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build synthesizer model")
	}
	queryCfg := llmCfg.OpenRouterFor(llmx.ComponentQueryGen)
	queryModel, err := queryCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build query generator model")
	}

	queries, err := plannerx.NewQueryGenerator(ctx, queryModel, prompts.QueryGen)
	if err != nil {
		log.Fatal().Err(err).Msg("build query generator")
	}
	synthesizer, err := plannerx.NewSynthesizer(ctx, synthModel, prompts.Synthesizer)
	if err != nil {
		log.Fatal().Err(err).Msg("build synthesizer")
	}

	deps := capabilityx.Deps{
		Store:   store,
		Drafts:  draftx.NewService(store),
		Queries: queries,
		Now:     time.Now,
	}

	// one planner per role, each bound to exactly that role's tool schemas
	adminTools := capabilityx.New(deps, contractx.Caller{Role: contractx.RoleAdmin}).ToolInfos()
	userTools := capabilityx.New(deps, contractx.Caller{Role: contractx.RoleUser}).ToolInfos()
	adminPlanner, err := plannerx.NewPlanner(ctx, plannerModel, adminTools)
	if err != nil {
		log.Fatal().Err(err).Msg("build admin planner")
	}
	userPlanner, err := plannerx.NewPlanner(ctx, plannerModel, userTools)
	if err != nil {
		log.Fatal().Err(err).Msg("build user planner")
	}

	orch, err := orchestratorx.New(
		deps,
		prompts,
		orchestratorx.Planners{Admin: adminPlanner, User: userPlanner},
		synthesizer,
		memoryx.NewService(store),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	srv := serverx.New(*serverCfg, authx.NewService(*authCfg, store), orch, store)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server")
	}
	log.Info().Msg("shutdown complete")
}
