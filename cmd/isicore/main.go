/*
DESCRIPTION
  isicore is the ISI macroscope control core's entry point: it wires a
  rotating file logger, builds the Lifecycle Orchestrator's component
  graph, runs startup, notifies systemd readiness, and blocks on a
  watchdog ping loop until an OS signal requests shutdown.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package main is the isicore daemon entry point.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/camera"
	"github.com/kimlab/isicore/lifecycle"
)

const version = "v0.1.0"

// Logging configuration, following cmd/rv's lumberjack-backed rotation.
const (
	logPath      = "/var/log/isicore/isicore.log"
	logMaxSize   = 200 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

const pkg = "isicore: "

var healthComponents = []string{
	"params", "bus", "camera", "stimulus", "recorder", "synctrack",
	"acquisition", "analysis", "mode",
}

func main() {
	showVersion := flag.Bool("version", false, "show version")
	paramPath := flag.String("params", "/var/lib/isicore/parameters.json", "parameter store persistence file")
	sessionRoot := flag.String("sessions", "/var/lib/isicore/sessions", "root directory for recorded sessions")
	shmPath := flag.String("shm", "/dev/shm/isicore_frames", "shared-frame channel backing file")
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logVerbosity, fileLog, logSuppress)
	log.Info(pkg+"starting", "version", version)

	initialParams, err := lifecycle.LoadParamFile(*paramPath)
	if err != nil {
		log.Error(pkg+"failed to load parameter file", "path", *paramPath, "error", err.Error())
		os.Exit(1)
	}

	orch, err := lifecycle.New(lifecycle.Config{
		Log:               log,
		ParamPath:         *paramPath,
		InitialParams:     initialParams,
		ShmPath:           *shmPath,
		ShmRingSlots:      64,
		ShmFrameSize:      1920 * 1080,
		ShmFrameSlots:      4,
		SessionRoot:       *sessionRoot,
		CameraEnumerator:  camera.NewEnumerator(),
		DisplayEnumerator: lifecycle.NewStaticDisplayEnumerator([]string{"primary"}),
		SyncWindowSize:    256,
	})
	if err != nil {
		log.Error(pkg+"failed to build component graph", "error", err.Error())
		os.Exit(1)
	}

	if err := orch.Start(); err != nil {
		log.Error(pkg+"startup failed", "error", err.Error())
		os.Exit(1)
	}
	log.Info(pkg + "startup complete, entering control-channel event loop")
	orch.NotifyReady()

	stop := make(chan struct{})
	go orch.RunWatchdog(healthComponents, stop)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info(pkg + "shutdown requested")
	orch.NotifyStopping()
	close(stop)
	if err := orch.Stop(); err != nil {
		log.Error(pkg+"shutdown error", "error", err.Error())
		os.Exit(1)
	}
	log.Info(pkg + "clean shutdown")
}
