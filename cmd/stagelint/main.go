package main

import (
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/stagekit/messages"
	"github.com/aukilabs/stagekit/modules/validate"
	"github.com/aukilabs/stagekit/stagefile"
	"github.com/segmentio/encoding/json"
)

// The stagelint version number. Set at build.
var version = "v0.1.0"

const (
	formatText = "text"
	formatJSON = "json"
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	File              string   `cli:""        env:"STAGELINT_FILE"                  help:"The stage document to check."`
	Fix               bool     `cli:""        env:"STAGELINT_FIX"                   help:"Apply the fixes of the findings and save the document."`
	Kinds             []string `cli:""        env:"STAGELINT_KINDS"                 help:"Comma separated finding kinds to fix. Empty fixes every kind."`
	Output            string   `cli:""        env:"STAGELINT_OUTPUT"                help:"Where the fixed document is saved. Empty overwrites the checked file."`
	Format            string   `cli:""        env:"STAGELINT_FORMAT"                help:"Report format (text|json)."`
	AssetRoot         string   `cli:""        env:"STAGELINT_ASSET_ROOT"            help:"The directory where asset bundles are looked up. Empty skips missing asset checks."`
	MaxObjectsPerClip int      `cli:",hidden" env:"STAGELINT_MAX_OBJECTS_PER_CLIP"  help:"The number of objects above which a clip is reported."`
	MaxTriangles      int      `cli:",hidden" env:"STAGELINT_MAX_TRIANGLES"         help:"The number of triangles above which an object is reported."`
	NoLegacy          bool     `cli:",hidden" env:"STAGELINT_NO_LEGACY"             help:"Reject legacy stage documents."`
	LogLevel          string   `cli:""        env:"STAGELINT_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	Version           bool     `cli:""        env:"-"                               help:"Show version."`
	Help              bool     `cli:""        env:"-"                               help:"Show help."`
}

func main() {
	conf := config{
		Format:   formatText,
		LogLevel: "error",
	}

	cli.Register().
		Help("Checks a stage document and optionally fixes it.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	errors.Encoder = json.Marshal

	ok, err := run(conf, os.Stdout)
	if err != nil {
		logs.Fatal(err)
	}
	if !ok {
		os.Exit(1)
	}
}

// run checks the configured file and writes a report to w. It reports
// whether the document is free of error findings.
func run(conf config, w io.Writer) (bool, error) {
	if conf.File == "" {
		return false, errors.New("no stage document given")
	}

	if conf.Format != formatText && conf.Format != formatJSON {
		return false, errors.New("unknown report format").
			WithTag("format", conf.Format)
	}

	stage, err := stagefile.Load(conf.File, stagefile.Options{
		DisableLegacy: conf.NoLegacy,
	})
	if err != nil {
		return false, err
	}

	opts := validate.Options{
		MaxObjectsPerClip: conf.MaxObjectsPerClip,
		MaxTriangles:      conf.MaxTriangles,
	}
	if conf.AssetRoot != "" {
		opts.AssetExists = validate.DirAssetExists(conf.AssetRoot)
	}

	var findings []validate.Finding
	applied := 0

	if conf.Fix {
		applied, findings = validate.FixStage(stage, opts, validate.ParseKinds(conf.Kinds)...)

		output := conf.Output
		if output == "" {
			output = conf.File
		}

		if applied != 0 || output != conf.File {
			if err := stagefile.Save(output, stage); err != nil {
				return false, err
			}
		}

		logs.WithTag("file", conf.File).
			WithTag("output", output).
			WithTag("applied", applied).
			Info("fixes applied")
	} else {
		findings = validate.Validate(stage, opts)
	}

	if err := report(w, conf.Format, findings, applied); err != nil {
		return false, err
	}
	return !validate.HasErrors(findings), nil
}

func report(w io.Writer, format string, findings []validate.Finding, applied int) error {
	if format == formatJSON {
		res := struct {
			Applied int `json:"applied"`
			messages.ValidateResponse
		}{
			Applied:          applied,
			ValidateResponse: validate.ToValidateResponse(findings),
		}

		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return errors.New("encoding report failed").Wrap(err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	for _, f := range findings {
		if _, err := fmt.Fprintf(w, "%-7s %s: %s\n", f.Severity, f.Kind, f.Description); err != nil {
			return err
		}
	}

	counts := validate.Count(findings)
	_, err := fmt.Fprintf(w, "%d errors, %d warnings, %d infos, %d fixes applied\n",
		counts[validate.SeverityError],
		counts[validate.SeverityWarning],
		counts[validate.SeverityInfo],
		applied,
	)
	return err
}
