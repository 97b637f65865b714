package main

import (
	"go.uber.org/fx"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/daemon"
	"github.com/hostyard/hostyard/internal/events"
	statusjob "github.com/hostyard/hostyard/internal/jobs/status"
	"github.com/hostyard/hostyard/internal/logging"
	"github.com/hostyard/hostyard/internal/persistence"
	"github.com/hostyard/hostyard/internal/provisioner"
	"github.com/hostyard/hostyard/internal/service"
	"github.com/hostyard/hostyard/internal/transport"
)

// Everything assembles the full hostyard application
var Everything = fx.Options(
	config.Module,
	logging.Module,
	persistence.Module,
	daemon.Module,
	provisioner.Module,
	events.Module,
	service.Module,
	statusjob.Module,
	transport.Module,
)

func main() {
	app := fx.New(Everything)
	app.Run()
}
