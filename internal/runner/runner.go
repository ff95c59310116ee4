// Package runner drives the conversion of a batch of acquisitions:
// load, classify, split, materialize, sidecars, QC. Acquisitions are
// independent, so the batch runs on a bounded worker pool; a failure is
// logged and reported for its own acquisition only.
package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"parforge/internal/bids"
	"parforge/internal/config"
	"parforge/internal/dcm"
	"parforge/internal/nii"
	"parforge/internal/parrec"
	"parforge/internal/qc"
	"parforge/internal/split"
)

// Runner converts acquisitions according to one explicit configuration.
type Runner struct {
	cfg     *config.Config
	log     *logrus.Logger
	version string
}

// New builds a runner. log must not be nil; tests pass a discarding
// logger.
func New(cfg *config.Config, log *logrus.Logger, version string) *Runner {
	return &Runner{cfg: cfg, log: log, version: version}
}

// Result is the outcome for one source acquisition.
type Result struct {
	Source      string
	Kind        split.Kind
	Ratio       int
	Interleaved bool
	Outputs     []string
	Err         error
}

// acquisition is the loader-independent view of one source: the 4-D
// image plus the header facts classification and sidecars need.
type acquisition struct {
	img              *nii.Image
	declaredDynamics int
	imageTypes       []int
	repetitionMS     float64
	echoMS           float64
	protocol         string
	manufacturer     string
}

// Run converts every source and returns results in input order. The batch
// never aborts early: each acquisition fails or succeeds on its own.
func (r *Runner) Run(sources []string) []Result {
	if err := os.MkdirAll(r.cfg.Output.Dir, 0o755); err != nil {
		results := make([]Result, len(sources))
		for i, src := range sources {
			results[i] = Result{Source: src, Err: fmt.Errorf("create output directory: %w", err)}
		}
		return results
	}

	workers := r.cfg.Processing.Workers
	if workers > len(sources) {
		workers = len(sources)
	}
	if workers < 1 {
		workers = 1
	}

	type task struct {
		index  int
		source string
	}
	taskChan := make(chan task, len(sources))
	results := make([]Result, len(sources))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskChan {
				results[t.index] = r.process(t.source)
			}
		}()
	}
	for i, src := range sources {
		taskChan <- task{index: i, source: src}
	}
	close(taskChan)
	wg.Wait()

	for _, res := range results {
		fields := logrus.Fields{"source": res.Source}
		if res.Err != nil {
			r.log.WithFields(fields).WithError(res.Err).Error("conversion failed")
			continue
		}
		fields["kind"] = res.Kind.String()
		fields["outputs"] = len(res.Outputs)
		r.log.WithFields(fields).Info("converted")
	}
	return results
}

// process runs the full pipeline for one source.
func (r *Runner) process(source string) Result {
	res := Result{Source: source}

	acq, err := load(source)
	if err != nil {
		res.Err = err
		return res
	}

	kind, ratio, err := split.Classify(acq.declaredDynamics, acq.img.Hdr.NVolumes())
	if err != nil {
		res.Err = err
		return res
	}
	res.Kind, res.Ratio = kind, ratio

	interleaved := false
	if kind != split.KindSingle {
		interleaved, err = split.DetectInterleave(acq.imageTypes, kind)
		if err != nil {
			res.Err = err
			return res
		}
	}
	res.Interleaved = interleaved

	plan := split.BuildPlan(kind, interleaved, acq.declaredDynamics, acq.img.Hdr.NVolumes())
	base := filepath.Join(r.cfg.Output.Dir, bids.BaseName(source))

	if !r.cfg.Output.Overwrite {
		for _, out := range plan {
			path := base + out.Suffix + r.cfg.Ext()
			if _, err := os.Stat(path); err == nil {
				res.Err = fmt.Errorf("output %s already exists (overwrite disabled)", path)
				return res
			}
		}
	}

	outputs, err := split.Materialize(acq.img, base, r.cfg.Ext(), plan)
	res.Outputs = outputs
	if err != nil {
		res.Err = err
		return res
	}

	sidecar := bids.Sidecar{
		RepetitionTime:     acq.repetitionMS / 1000.0,
		EchoTime:           acq.echoMS / 1000.0,
		Manufacturer:       acq.manufacturer,
		ProtocolName:       acq.protocol,
		ConversionSoftware: "parforge",
		ConversionVersion:  r.version,
	}
	for _, out := range outputs {
		if err := sidecar.Write(out); err != nil {
			res.Err = err
			return res
		}
	}

	if r.cfg.QC.Enabled {
		if err := r.writeQC(source, base, res, outputs); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}

// load dispatches on the source type: a directory is a DICOM series, a
// .PAR file a PAR/REC pair.
func load(source string) (*acquisition, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	if info.IsDir() {
		series, err := dcm.LoadSeries(source)
		if err != nil {
			return nil, err
		}
		// DICOM exports hold one reconstruction per series, so the
		// declared count is the actual count: no split.
		return &acquisition{
			img:              series.Image,
			declaredDynamics: series.Image.Hdr.NVolumes(),
			repetitionMS:     series.RepetitionTimeMS,
			echoMS:           series.EchoTimeMS,
			protocol:         series.Protocol,
			manufacturer:     series.Manufacturer,
		}, nil
	}

	if !strings.EqualFold(filepath.Ext(source), ".par") {
		return nil, fmt.Errorf("unsupported source %s: expected a .PAR file or DICOM directory", source)
	}
	ds, err := parrec.Load(source)
	if err != nil {
		return nil, err
	}
	var echoMS float64
	if len(ds.Header.Rows) > 0 {
		echoMS = ds.Header.Rows[0].EchoTimeMS
	}
	return &acquisition{
		img:              ds.Image,
		declaredDynamics: ds.Header.General.MaxDynamics,
		imageTypes:       ds.Header.ImageTypes(),
		repetitionMS:     ds.Header.General.RepetitionTimeMS,
		echoMS:           echoMS,
		protocol:         ds.Header.General.ProtocolName,
		manufacturer:     "Philips",
	}, nil
}

// writeQC reads the materialized outputs back and writes the stats
// report and slice montage. Reading back also proves the files on disk
// parse.
func (r *Runner) writeQC(source, base string, res Result, outputs []string) error {
	report := qc.Report{
		Source:      source,
		Kind:        res.Kind.String(),
		Ratio:       res.Ratio,
		Interleaved: res.Interleaved,
	}

	var images []*nii.Image
	for _, out := range outputs {
		img, err := nii.Read(out)
		if err != nil {
			return fmt.Errorf("qc readback: %w", err)
		}
		stats, err := qc.Compute(img, filepath.Base(out))
		if err != nil {
			return err
		}
		report.Outputs = append(report.Outputs, stats)
		images = append(images, img)
	}

	if err := report.WriteJSON(base + "_qc.json"); err != nil {
		return err
	}
	return qc.WriteMontage(images, base+"_qc.png")
}
