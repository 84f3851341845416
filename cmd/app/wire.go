//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yanqian/callnotes/internal/bootstrap"
	"github.com/yanqian/callnotes/internal/infra/config"
	httpiface "github.com/yanqian/callnotes/internal/interface/http"
	"github.com/yanqian/callnotes/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		bootstrap.PipelineSet,
		bootstrap.ProvideRegistry,
		wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
