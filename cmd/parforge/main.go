package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"parforge/internal/config"
	"parforge/internal/runner"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	// Define command-line flags
	outputDir := flag.String("output", "", "Output directory (default: 'derivatives')")
	configFile := flag.String("config", "", "Load configuration from YAML file")
	workers := flag.Int("workers", 0, fmt.Sprintf("Number of parallel workers (default: %d = CPU cores)", runtime.NumCPU()))
	noGzip := flag.Bool("no-gzip", false, "Write plain .nii instead of .nii.gz")
	noQC := flag.Bool("no-qc", false, "Skip QC report and montage generation")
	overwrite := flag.Bool("overwrite", false, "Overwrite existing output files")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (default: info)")

	help := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("parforge %s\n", version)
		os.Exit(0)
	}

	// Show help
	if *help {
		printHelp()
		os.Exit(0)
	}

	// Load configuration, then let flags override it
	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *workers > 0 {
		cfg.Processing.Workers = *workers
	}
	if *noGzip {
		cfg.Output.Gzip = false
	}
	if *noQC {
		cfg.QC.Enabled = false
	}
	if *overwrite {
		cfg.Output.Overwrite = true
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sources := flag.Args()
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one source (.PAR file or DICOM directory) is required")
		printUsage()
		os.Exit(1)
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.SetLevel(level)

	results := runner.New(cfg, log, version).Run(sources)

	converted, failed := 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		converted++
	}

	fmt.Printf("\n%d converted, %d failed\n", converted, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  parforge [options] <source> [<source>...]")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	flag.PrintDefaults()
}

func printHelp() {
	fmt.Println("parforge")
	fmt.Println("========")
	fmt.Println()
	fmt.Println("Convert Philips PAR/REC exports and DICOM series to NIfTI, splitting")
	fmt.Println("multi-contrast acquisitions (phase, MP2RAGE inversions) into separate files.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  parforge [options] <source> [<source>...]")
	fmt.Println()
	fmt.Println("Sources:")
	fmt.Println("  A .PAR file (its .REC must sit next to it) or a directory of DICOM slices.")
	fmt.Println("  Each source converts independently; one failure never aborts the rest.")
	fmt.Println()
	fmt.Println("Optional arguments:")
	fmt.Println("  --output <DIR>        Output directory (default: 'derivatives')")
	fmt.Println("  --config <FILE>       Load configuration from YAML file")
	fmt.Printf("  --workers <N>         Number of parallel workers (default: %d = CPU cores)\n", runtime.NumCPU())
	fmt.Println("  --no-gzip             Write plain .nii instead of .nii.gz")
	fmt.Println("  --no-qc               Skip QC report and montage generation")
	fmt.Println("  --overwrite           Overwrite existing output files")
	fmt.Println("  --log-level <LEVEL>   Log level: debug, info, warn, error (default: info)")
	fmt.Println()
	fmt.Println("  --help                Show this help message")
	fmt.Println("  --version             Show version")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Convert one PAR/REC acquisition")
	fmt.Println("  parforge sub-01_bold.PAR")
	fmt.Println()
	fmt.Println("  # Convert a whole session into a BIDS derivatives directory")
	fmt.Println("  parforge --output derivatives/sub-01 raw/*.PAR")
	fmt.Println()
	fmt.Println("  # Convert a DICOM series directory without QC outputs")
	fmt.Println("  parforge --no-qc dicom/SE000000")
	fmt.Println()
	fmt.Println("Output:")
	fmt.Println("  For each acquisition parforge writes:")
	fmt.Println("  - one NIfTI file per reconstruction (magnitude, _ph, MP2RAGE inversions)")
	fmt.Println("  - a BIDS JSON sidecar next to each NIfTI file")
	fmt.Println("  - <name>_qc.json and <name>_qc.png unless --no-qc is set")
	fmt.Println()
	fmt.Println("Splitting:")
	fmt.Println("  When the REC holds 2x or 4x the declared dynamic count, the extra")
	fmt.Println("  reconstructions (phase images, MP2RAGE inversions) are detected from the")
	fmt.Println("  image-type column and written as separate files with BIDS-style suffixes.")
}
