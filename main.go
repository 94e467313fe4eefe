package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/callebjorkell/nfc-bridge/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app        = kingpin.New("nfc-bridge", "Hands NFC tag reads from a Raspberry Pi reader to a consumer that gets ready whenever it gets ready.")
	configFile = app.Flag("config", "Path to the YAML configuration file.").Short('c').String()
	verbose    = app.Flag("verbose", "Enable debug logging.").Short('v').Bool()

	start           = app.Command("start", "Start the bridge and wait for a consumer to bind.")
	startTransport  = start.Flag("transport", "Override the transport (stream or mqtt).").String()
	startAddress    = start.Flag("address", "Override the address the stream transport listens on.").String()
	startCodec      = start.Flag("codec", "Override the codec (json or msgpack).").String()
	startForeground = start.Flag("foreground", "Bring the surface to the foreground as soon as a consumer binds.").Bool()

	listen       = app.Command("listen", "Bind to a running bridge as its consumer and print every delivered payload.")
	listenReject = listen.Flag("reject", "Answer deliveries with an error instead of accepting them.").Bool()

	dump    = app.Command("dump", "Read a tag and dump its NDEF records onto standard out.")
	dumpRaw = dump.Flag("raw", "Also dump the raw tag memory.").Bool()

	state      = app.Command("state", "List the persisted surface states.")
	stateClear = state.Flag("clear", "Remove the persisted state of the configured surface.").Bool()

	showConfig = app.Command("config", "Print the effective configuration as YAML.")
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	setLogLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case s := <-signalChan:
			log.Infof("Received %v, shutting down", s)
			cancel()
		case <-ctx.Done():
		}
	}()

	switch cmd {
	case start.FullCommand():
		startServer(ctx, cfg)
	case listen.FullCommand():
		listenAsConsumer(ctx, cfg)
	case dump.FullCommand():
		dumpTag(ctx, cfg)
	case state.FullCommand():
		if *stateClear {
			clearState(cfg)
		} else {
			listStates(cfg)
		}
	case showConfig.FullCommand():
		printConfig(cfg)
	default:
		kingpin.FatalUsage("Unrecognized command")
	}
	cancel()
}

func setLogLevel(level string) {
	if *verbose {
		log.SetLevel(log.DebugLevel)
		return
	}
	l, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", level)
		l = log.InfoLevel
	}
	log.SetLevel(l)
}

func printConfig(cfg *config.Config) {
	data, err := cfg.Marshal()
	if err != nil {
		log.Fatal(err)
	}
	os.Stdout.Write(data)
}
