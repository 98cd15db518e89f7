package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/tarstars/mltrees/golang/mltrees/logging"
	"github.com/tarstars/mltrees/golang/mltrees/ml"
	"github.com/tarstars/mltrees/golang/mltrees/runlog"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

func train(ctx context.Context, srcConfig string) error {
	trainConfig := defaultTrainConfig()
	if err := decodeConfig(srcConfig, &trainConfig); err != nil {
		return err
	}

	logger.Info("load train data", zap.String("samples", trainConfig.Data.FileNameSamples))
	data, err := readData(&trainConfig.Data, ml.WithSeed(trainConfig.Seed))
	if err != nil {
		return err
	}
	if trainConfig.TestRatio > 0 {
		if err := data.SetTrainTestSplitRatio(trainConfig.TestRatio, trainConfig.Shuffle); err != nil {
			return err
		}
	} else if trainConfig.Shuffle {
		data.ShuffleTrainTest()
	}

	model, err := newModel(&trainConfig, logger)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := model.Train(ctx, data, 0); err != nil {
		return err
	}
	duration := time.Since(start)

	trainError, _, err := ml.CalcError(model, data, false)
	if err != nil {
		return err
	}
	testError := float32(0)
	if data.NTestSamples() > 0 {
		if testError, _, err = ml.CalcError(model, data, true); err != nil {
			return err
		}
	}
	forest, err := model.Forest()
	if err != nil {
		return err
	}
	logger.Info("model trained",
		zap.String("model", trainConfig.Model),
		zap.Int("trees", forest.TreeCount()),
		zap.Float32("train_error", trainError),
		zap.Float32("test_error", testError),
		zap.Duration("duration", duration))

	if err := model.Save(trainConfig.FileNameModel); err != nil {
		return err
	}
	if trainConfig.FileNameLearningCurve != "" {
		curve, err := learningCurve(model)
		if err != nil {
			return err
		}
		if err := ml.WriteNpy(trainConfig.FileNameLearningCurve, toFloat32(curve)); err != nil {
			return err
		}
	}

	if trainConfig.FileNameRunLog == "" {
		return nil
	}
	runLog, err := runlog.Open(trainConfig.FileNameRunLog)
	if err != nil {
		return err
	}
	defer func() { _ = runLog.Close() }()
	return runLog.Record(ctx, runlog.Run{
		ModelKind:  trainConfig.Model,
		ModelFile:  trainConfig.FileNameModel,
		Samples:    data.NTrainSamples(),
		Trees:      forest.TreeCount(),
		Nodes:      len(forest.Nodes),
		TrainError: float64(trainError),
		TestError:  float64(testError),
		Duration:   duration,
	})
}

func predict(_ context.Context, srcConfig string) error {
	var predictConfig PredictConfig
	if err := decodeConfig(srcConfig, &predictConfig); err != nil {
		return err
	}

	model, err := loadModel(predictConfig.ModelFileName)
	if err != nil {
		return err
	}
	var flags ml.Flags
	if predictConfig.RawOutput {
		flags |= ml.RawOutput
	}
	prediction, err := predictFile(model, predictConfig.SamplesFileName, flags)
	if err != nil {
		return err
	}
	return ml.WriteNpy(predictConfig.PredictionFileName, prediction)
}

func calcError(_ context.Context, srcConfig string) error {
	var errorConfig ErrorConfig
	if err := decodeConfig(srcConfig, &errorConfig); err != nil {
		return err
	}

	model, err := loadModel(errorConfig.ModelFileName)
	if err != nil {
		return err
	}
	errorConfig.Data.CategoricalResponses = model.IsClassifier()
	data, err := readData(&errorConfig.Data)
	if err != nil {
		return err
	}
	modelError, _, err := ml.CalcError(model, data, false)
	if err != nil {
		return err
	}
	kind := "rms"
	if model.IsClassifier() {
		kind = "misclassified %"
	}
	fmt.Printf("%s: %g\n", kind, modelError)
	return nil
}

func graph(_ context.Context, srcConfig string) error {
	var graphConfig GraphConfig
	if err := decodeConfig(srcConfig, &graphConfig); err != nil {
		return err
	}

	model, err := loadModel(graphConfig.ModelFileName)
	if err != nil {
		return err
	}
	forest, err := model.Forest()
	if err != nil {
		return err
	}
	return forest.RenderTrees(graphConfig.DumpPrefix, graphConfig.FigureType, graphConfig.PicturesDirectory)
}

func lcurve(_ context.Context, srcConfig string) error {
	var lcurveConfig LcurveConfig
	if err := decodeConfig(srcConfig, &lcurveConfig); err != nil {
		return err
	}

	model, err := loadModel(lcurveConfig.ModelFileName)
	if err != nil {
		return err
	}
	curve, err := learningCurve(model)
	if err != nil {
		return err
	}
	return ml.WriteNpy(lcurveConfig.LearningCurveFileName, toFloat32(curve))
}

func runs(ctx context.Context, srcConfig string) error {
	runsConfig := RunsConfig{Limit: 20}
	if err := decodeConfig(srcConfig, &runsConfig); err != nil {
		return err
	}

	runLog, err := runlog.Open(runsConfig.FileNameRunLog)
	if err != nil {
		return err
	}
	defer func() { _ = runLog.Close() }()

	recent, err := runLog.Recent(ctx, runsConfig.Limit)
	if err != nil {
		return err
	}
	for _, run := range recent {
		fmt.Printf("%s  %-7s trees=%-4d nodes=%-6d train=%-8.4g test=%-8.4g %s  %s\n",
			run.TrainedAt.Format(time.RFC3339), run.ModelKind, run.Trees, run.Nodes,
			run.TrainError, run.TestError, run.Duration, run.ModelFile)
	}
	return nil
}

var modes = map[string]func(context.Context, string) error{
	"train":   train,
	"predict": predict,
	"error":   calcError,
	"graph":   graph,
	"lcurve":  lcurve,
	"runs":    runs,
}

func main() {
	runMode := flag.String("mode", "train", "you can select 'train', 'predict', 'error', 'graph', 'lcurve' or 'runs' modes")
	config := flag.String("config", "mltrees_config.yaml", "a config file for the run of the program")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	logFile := flag.String("log-file", "", "write the log to this rotated file instead of stderr")
	memprofile := flag.String("memprofile", "", "write memory profile to `file`")

	flag.Parse()

	var err error
	logger, err = logging.New(logging.Config{Level: *logLevel, File: *logFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	mode, ok := modes[*runMode]
	if !ok {
		logger.Fatal("unknown mode", zap.String("mode", *runMode))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := mode(ctx, *config); err != nil {
		logger.Fatal("run failed", zap.String("mode", *runMode), zap.Error(err))
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			logger.Fatal("could not create memory profile", zap.Error(err))
		}
		defer func() { _ = f.Close() }()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			logger.Fatal("could not write memory profile", zap.Error(err))
		}
	}
}
