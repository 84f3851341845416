//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/callnotes/internal/bootstrap"
	"github.com/yanqian/callnotes/internal/infra/config"
)

func initializeCLI() (*cli, func(), error) {
	wire.Build(
		config.Load,
		provideCLILogger,
		bootstrap.PipelineSet,
		newCLI,
	)
	return nil, nil, nil
}
