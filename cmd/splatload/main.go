package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"splatload/internal/logging"
	"splatload/pkg/config"
	"splatload/pkg/dataset"
)

func main() {
	// Parse command line arguments
	root := flag.String("input", "", "Dataset root directory")
	format := flag.String("format", "auto", "Dataset format: auto, colmap, blender or kitti360")
	configPath := flag.String("config", "splatload.yaml", "Path to the YAML configuration file")
	imagesDir := flag.String("images", "", "COLMAP images subfolder (overrides config)")
	eval := flag.Bool("eval", false, "Hold out test cameras for evaluation")
	whiteBackground := flag.Bool("white-background", false, "Composite alpha images onto white instead of black")
	flag.Parse()

	if *root == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.File)
	defer log.Sync()

	opts := cfg.Options()
	if *imagesDir != "" {
		opts.ImagesDir = *imagesDir
	}
	if *eval {
		opts.Eval = true
	}
	if *whiteBackground {
		opts.WhiteBackground = true
	}
	opts.Logger = log
	opts.Progress = func(done, total int) {
		if done == total || done%25 == 0 {
			log.Infof("unified camera %d/%d", done, total)
		}
	}

	kind, err := resolveKind(*format, *root)
	if err != nil {
		log.Fatalf("detecting dataset format: %v", err)
	}

	start := time.Now()
	desc, err := dataset.Load(*root, kind, opts)
	if err != nil {
		log.Fatalf("load failed: %v", err)
	}

	log.Infof("loaded %s dataset in %.2fs", kind, time.Since(start).Seconds())
	log.Infof("train cameras: %d", len(desc.TrainCameras))
	log.Infof("test cameras: %d", len(desc.TestCameras))
	if desc.PointCloud != nil {
		log.Infof("point cloud: %d points (%s)", desc.PointCloud.Len(), desc.PointCloudPath)
	} else {
		log.Infof("point cloud: none (no geometric prior)")
	}
	log.Infof("normalization: translate=(%.4f, %.4f, %.4f) radius=%.4f",
		desc.Normalization.Translate.X,
		desc.Normalization.Translate.Y,
		desc.Normalization.Translate.Z,
		desc.Normalization.Radius)
}

func resolveKind(format, root string) (dataset.Kind, error) {
	switch format {
	case "auto":
		return dataset.Detect(root)
	case "colmap":
		return dataset.KindColmap, nil
	case "blender":
		return dataset.KindBlender, nil
	case "kitti360":
		return dataset.KindKitti360, nil
	}
	return 0, fmt.Errorf("unknown format %q", format)
}
