package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	config "github.com/avvvet/checkin-services/configs"
	"github.com/avvvet/checkin-services/internal/qr"
)

func main() {
	config.LoadEnv("qrgen")
	log.SetLevel(config.ParseLevel(os.Getenv("LOG_LEVEL")))

	app := &cli.App{
		Name:  "qrgen",
		Usage: "print-ready check-in QR codes with a label under each code",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base",
				Usage:   "check-in form address the codes point to",
				Value:   "http://localhost:8080/",
				EnvVars: []string{"PUBLIC_BASE_URL"},
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "output directory",
				Value: "qr_codes",
			},
			&cli.StringFlag{
				Name:    "font",
				Usage:   "TrueType font for labels; Hangul needs one",
				EnvVars: []string{"QR_FONT_PATH"},
			},
			&cli.StringFlag{
				Name:  "param",
				Usage: "query key each target's name is sent as",
				Value: qr.SchoolParam,
			},
			&cli.StringSliceFlag{
				Name:  "target",
				Usage: "label to generate (repeatable); defaults to the 26 precinct schools",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	targets := qr.DefaultSchools()
	if names := c.StringSlice("target"); len(names) > 0 {
		targets = targets[:0]
		for _, n := range names {
			targets = append(targets, qr.Target{Name: n, Params: map[string]string{c.String("param"): n}})
		}
	} else if p := c.String("param"); p != qr.SchoolParam {
		for i := range targets {
			targets[i].Params = map[string]string{p: targets[i].Name}
		}
	}

	opts := qr.DefaultRenderOptions()
	opts.Face = qr.LabelFace(c.String("font"))

	entries, err := qr.Batch(targets, qr.BatchOptions{
		BaseURL: c.String("base"),
		Dir:     c.String("out"),
		Render:  opts,
	})
	for _, e := range entries {
		fmt.Printf("%s -> %s\n", e.Name, e.File)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%d codes written to %s (%s)\n", len(entries), c.String("out"), qr.ManifestFile)
	return nil
}
