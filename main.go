package main

import (
	"encoding/gob"
	"fmt"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/classroom-tools/grader-pipeline/api"
	"github.com/classroom-tools/grader-pipeline/api/pipeline"
	"github.com/classroom-tools/grader-pipeline/api/queue"
	"github.com/classroom-tools/grader-pipeline/api/services"
	"github.com/classroom-tools/grader-pipeline/config"
)

const envFile = "grader.env"

var (
	// populated at compile time based on data injected by the makefile
	version   = "unset"
	timestamp = "unset"
)

func main() {
	// Load environment
	env, err := config.Load(envFile)
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	var logger *zap.Logger
	switch env.Mode {
	case "dev":
		logger, err = zap.NewDevelopment()
	case "prod":
		logger, err = zap.NewProduction()
	default:
		err = fmt.Errorf("Invalid 'mode' flag: %s", env.Mode)
	}
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()

	cfg := config.Config{
		Logger:      sugar,
		Environment: env,
	}

	// Log version
	sugar.Infof("Version: %s Timestamp: %s", version, timestamp)

	// Log config
	sugar.Info(env)

	// Setup the request queue
	var requestQueue queue.RequestQueue
	if env.PersistedQueue {
		// The gob package that the persisted queue uses for storing data requires a
		// one-time registration of any structures that it stores.
		gob.Register(pipeline.GradeRequest{})
		gob.Register(pipeline.KeyedGradeRequest{})
		requestQueue, err = queue.NewPersistedFIFOQueue(env.QueueSize, env.QueueDir, env.QueueName)
		if err != nil {
			sugar.Fatal(err)
		}
		sugar.Infof("Loaded queue with %d entries from %s%s", requestQueue.Size(), env.QueueDir, env.QueueName)
	} else {
		// in-memory queue, data does not survive a restart
		requestQueue = queue.NewListFIFOQueue(env.QueueSize)
	}

	// Setup collaborator clients
	classroom := services.NewClassroomService(&cfg)
	source := services.NewSourceService(&cfg)
	generation := services.NewGenerationService(&cfg)
	mail := services.NewMailService(&cfg)

	// Setup the confirmation gate
	var gate pipeline.ConfirmationGate
	var signalGate *pipeline.SignalGate
	if env.ConfirmMode == config.ConfirmAuto {
		gate = pipeline.AutoGate{}
	} else {
		signalGate = pipeline.NewSignalGate(env)
		gate = signalGate
	}

	// Setup the grading pipeline and the queue runner that feeds it
	gradingPipeline := pipeline.NewPipeline(&cfg, classroom, source, generation, mail, gate)
	gradingRunner := pipeline.NewGradingRunner(&cfg, requestQueue, gradingPipeline)

	// Setup router
	r, err := api.NewRouter(cfg, requestQueue, gradingRunner, signalGate)
	if err != nil {
		sugar.Fatal(err)
	}

	// Start servicing the queue
	gradingRunner.Start()

	// Start listening
	sugar.Infof("Listening on %s", env.Addr)
	sugar.Fatal(http.ListenAndServe(env.Addr, r))
}
