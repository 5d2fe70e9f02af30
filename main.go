package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/yingcaihuang/web-to-app/internal/logger"
	"github.com/yingcaihuang/web-to-app/pkg/apkbuilder"
	"github.com/yingcaihuang/web-to-app/pkg/apksign"
)

const version = "1.0.0"

const usage = `web-to-app - clone a template APK into a stand-alone app

Builds a signed APK from a template APK and an app configuration by patching
the compiled manifest and resource table in place. No Android SDK is needed.

Usage:
  web-to-app build --config=<path> --template=<path> [options]
  web-to-app init --out=<path>
  web-to-app info --apk=<path> [--entries]
  web-to-app diff --apk1=<path> --apk2=<path>
  web-to-app list [--output-dir=<dir>]
  web-to-app delete <name> [--output-dir=<dir>]
  web-to-app clean [--output-dir=<dir>] [--work-dir=<dir>]
  web-to-app keygen --out=<path> [--password=<password>] [--cn=<name>] [--days=<n>]
  web-to-app -h | --help
  web-to-app --version

Commands:
  build     Build a signed APK from a config file (.yaml, .yml, .json or .plist)
  init      Write a config file with default values
  info      Show identity, config, signatures and entries of an APK
  diff      Compare two APKs
  list      List built APKs
  delete    Delete one built APK
  clean     Delete all built APKs and scratch files
  keygen    Create a PKCS#12 signing keystore

Options:
  --config=<path>         App configuration file
  --template=<path>       Template APK to clone
  --template-name=<name>  App name compiled into the template (defaults to the marker name)
  --output-dir=<dir>      Directory for built APKs [default: ./output]
  --work-dir=<dir>        Directory for per-build scratch files [default: ./work]
  --log-dir=<dir>         Directory for per-build log files [default: ./logs]
  --assets=<dir>          Directory that asset:/// paths resolve against
  --keystore=<path>       PKCS#12 or PEM signing identity (or WEBTOAPP_KEYSTORE env var)
  --password=<password>   Keystore password (or WEBTOAPP_KEYSTORE_PASSWORD env var)
  --log-level=<level>     Console log level: debug, info, warn, error [default: info]
  --apk=<path>            APK to inspect
  --apk1=<path>           First APK to compare
  --apk2=<path>           Second APK to compare
  --entries               List every archive entry
  --out=<path>            File to write
  --cn=<name>             Certificate common name [default: WebToApp]
  --days=<n>              Certificate validity in days [default: 9125]
  -h --help               Show this help message
  --version               Show version

Environment Variables:
  WEBTOAPP_KEYSTORE           Signing identity (overridden by --keystore)
  WEBTOAPP_KEYSTORE_PASSWORD  Keystore password (overridden by --password)

Without a keystore, build signs with a throwaway debug identity.

Examples:
  # Create a keystore and a config, then build
  web-to-app keygen --out=release.p12 --password=secret
  web-to-app init --out=app.yaml
  web-to-app build --config=app.yaml --template=shell.apk --keystore=release.p12 --password=secret

  # Inspect the result
  web-to-app info --apk=output/My_App_v1.0.0.apk --entries
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	if s, _ := opts.String("--log-level"); s != "" {
		level, ok := logger.ParseLogLevel(s)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown log level %q\n", s)
			os.Exit(1)
		}
		logger.SetLevel(level)
	}

	commands := []struct {
		name string
		run  func(docopt.Opts) error
	}{
		{"build", runBuild},
		{"init", runInit},
		{"info", runInfo},
		{"diff", runDiff},
		{"list", runList},
		{"delete", runDelete},
		{"clean", runClean},
		{"keygen", runKeygen},
	}

	for _, c := range commands {
		if ok, _ := opts.Bool(c.name); ok {
			if err := c.run(opts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			return
		}
	}
}

func runBuild(opts docopt.Opts) error {
	configPath, _ := opts.String("--config")
	templatePath, _ := opts.String("--template")
	templateName, _ := opts.String("--template-name")
	outputDir, _ := opts.String("--output-dir")
	workDir, _ := opts.String("--work-dir")
	logDir, _ := opts.String("--log-dir")
	assetsDir, _ := opts.String("--assets")

	cfg, err := apkbuilder.LoadConfig(configPath)
	if err != nil {
		return err
	}

	signer, err := loadSigner(opts)
	if err != nil {
		return err
	}

	b := &apkbuilder.Builder{
		TemplatePath:    templatePath,
		TemplateAppName: templateName,
		OutputDir:       outputDir,
		WorkDir:         workDir,
		LogDir:          logDir,
		Signer:          signer,
	}
	if assetsDir != "" {
		b.HostAssets = os.DirFS(assetsDir)
	}

	fmt.Printf("Building %s from %s\n", cfg.AppName, templatePath)
	res := b.Build(context.Background(), cfg, func(percent int, label string) {
		fmt.Printf("  [%3d%%] %s\n", percent, label)
	})
	fmt.Println()

	for _, w := range res.Warnings {
		fmt.Printf("Warning: %v\n", w)
	}
	if len(res.Duplicates) > 0 {
		fmt.Printf("Dropped duplicate entries: %v\n", res.Duplicates)
	}
	if res.LogPath != "" {
		fmt.Printf("Build log: %s\n", res.LogPath)
	}
	if !res.Success() {
		return res.Err
	}

	fmt.Printf("Successfully built APK: %s (%s)\n", res.OutputPath, res.Duration.Round(time.Millisecond))

	return nil
}

// loadSigner reads the keystore from flags or the environment, falling back
// to a generated debug identity.
func loadSigner(opts docopt.Opts) (*apksign.Signer, error) {
	keystore, _ := opts.String("--keystore")
	password, _ := opts.String("--password")

	if keystore == "" {
		keystore = os.Getenv("WEBTOAPP_KEYSTORE")
	}
	if password == "" {
		password = os.Getenv("WEBTOAPP_KEYSTORE_PASSWORD")
	}

	if keystore == "" {
		fmt.Println("No keystore given, signing with a throwaway debug identity")
		id, err := apksign.GenerateIdentity("WebToApp Debug", 365*24*time.Hour)
		if err != nil {
			return nil, err
		}

		return apksign.NewSigner(id), nil
	}

	id, err := apksign.LoadIdentityFile(keystore, password)
	if err != nil {
		return nil, fmt.Errorf("failed to load keystore: %w", err)
	}
	fmt.Printf("Using keystore: %s (%s)\n", keystore, id.Certificate.Subject.CommonName)

	return apksign.NewSigner(id), nil
}

func runInit(opts docopt.Opts) error {
	out, _ := opts.String("--out")

	cfg := apkbuilder.DefaultConfig()
	cfg.AppName = "My App"
	cfg.TargetURL = "https://example.com"

	if err := apkbuilder.WriteConfig(out, &cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", out)

	return nil
}

func runInfo(opts docopt.Opts) error {
	apkPath, _ := opts.String("--apk")
	entries, _ := opts.Bool("--entries")

	info, err := apkbuilder.Describe(apkPath)
	if err != nil {
		return err
	}

	apkbuilder.PrintArchiveInfo(info, os.Stdout, entries)

	return nil
}

func runDiff(opts docopt.Opts) error {
	apk1, _ := opts.String("--apk1")
	apk2, _ := opts.String("--apk2")

	info1, err := apkbuilder.Describe(apk1)
	if err != nil {
		return err
	}
	info2, err := apkbuilder.Describe(apk2)
	if err != nil {
		return err
	}

	apkbuilder.PrintArchiveDiff(apkbuilder.CompareArchives(info1, info2), os.Stdout)

	return nil
}

func runList(opts docopt.Opts) error {
	dir, _ := opts.String("--output-dir")

	built, err := apkbuilder.ListBuilt(dir)
	if err != nil {
		return err
	}
	if len(built) == 0 {
		fmt.Printf("No APKs in %s\n", dir)

		return nil
	}

	for _, b := range built {
		fmt.Printf("%s  %10d  %s\n", b.ModTime.Format("2006-01-02 15:04"), b.Size, filepath.Base(b.Path))
	}

	return nil
}

func runDelete(opts docopt.Opts) error {
	dir, _ := opts.String("--output-dir")
	name, _ := opts.String("<name>")

	if err := apkbuilder.DeleteBuilt(dir, name); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", name)

	return nil
}

func runClean(opts docopt.Opts) error {
	outputDir, _ := opts.String("--output-dir")
	workDir, _ := opts.String("--work-dir")

	if err := apkbuilder.ClearAll(outputDir, workDir); err != nil {
		return err
	}
	fmt.Printf("Cleared %s and %s\n", outputDir, workDir)

	return nil
}

func runKeygen(opts docopt.Opts) error {
	out, _ := opts.String("--out")
	password, _ := opts.String("--password")
	cn, _ := opts.String("--cn")
	daysStr, _ := opts.String("--days")

	if password == "" {
		password = os.Getenv("WEBTOAPP_KEYSTORE_PASSWORD")
	}

	days, err := strconv.Atoi(daysStr)
	if err != nil || days <= 0 {
		return fmt.Errorf("--days must be a positive number, got %q", daysStr)
	}

	id, err := apksign.GenerateIdentity(cn, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}

	data, err := id.PKCS12(password)
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	fmt.Printf("Wrote keystore %s (%s, valid until %s)\n", out, cn, id.Certificate.NotAfter.Format("2006-01-02"))

	return nil
}
