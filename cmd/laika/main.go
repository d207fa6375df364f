package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for "Laika", a half-duplex packet-radio
 *		modem link engine:
 *
 *			Serial-to-radio bridge with in-band escape commands.
 *			Reed-Solomon FEC with bit interleaving.
 *			CSMA/TDM channel scheduler with listen-before-talk,
 *			duty cycle limiting and randomized backoff.
 *			Remote command dispatch between nodes.
 *
 *		The radio itself is pluggable; this binary drives a UDP
 *		"air" link so two instances on a network form a working
 *		pair, with a real serial device (or stdio) on the host
 *		side.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
	"github.com/spf13/pflag"

	laika "github.com/doismellburning/laika/src"
)

// bannerDispatcher answers remote commands from peer nodes.  Only the
// identify command is served here; everything else is for the node
// operator to extend.
type bannerDispatcher struct {
	logger *log.Logger
}

func (d *bannerDispatcher) Dispatch(payload []byte) []byte {
	d.logger.Info("remote command", "cmd", string(payload))

	switch string(payload) {
	case "ATI":
		return []byte("Laika " + laika.LAIKA_VERSION)
	}
	return []byte("ERROR")
}

func main() {
	var configFileName = pflag.StringP("config-file", "c", "", "Configuration file name.")
	var deviceName = pflag.StringP("device", "D", "", "Host serial device, e.g. /dev/ttyUSB0.  Empty for stdio.")
	var baud = pflag.IntP("baud", "b", 57600, "Host serial speed.  0 to leave the device alone.")
	var listenAddr = pflag.StringP("listen", "l", "127.0.0.1:9001", "UDP address for this node's air interface.")
	var peerAddr = pflag.StringP("peer", "p", "127.0.0.1:9002", "UDP address of the peer node's air interface.")
	var tickMs = pflag.IntP("tick-interval", "t", 10, "Scheduler tick interval in milliseconds.")
	var verbose = pflag.BoolP("verbose", "v", false, "Debug logging.")
	var showVersion = pflag.Bool("version", false, "Print version and exit.")

	pflag.Parse()

	if *showVersion {
		laika.PrintVersion(*verbose)
		os.Exit(0)
	}

	var logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "laika",
	})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	var params = laika.DefaultParams()
	if *configFileName != "" {
		var loaded, err = laika.LoadParams(*configFileName)
		if err != nil {
			logger.Fatal("loading configuration", "err", err)
		}
		params = loaded
	}
	logger.Info("link parameters",
		"network", params.NetworkID,
		"node", params.NodeID,
		"duty_cycle", params.DutyCycle,
		"lbt_rssi", params.LBTRssi,
		"tdm_slots", params.TDMSlots)

	var radio, err = laika.NewUDPRadio(*listenAddr, *peerAddr, logger)
	if err != nil {
		logger.Fatal("opening air interface", "err", err)
	}
	defer radio.Close()

	modem, err := laika.NewModem(params, radio, &bannerDispatcher{logger: logger}, logger)
	if err != nil {
		logger.Fatal("assembling modem", "err", err)
	}

	var host = openHost(*deviceName, *baud, logger)

	// Host receive: every byte goes straight into the modem, the
	// same role the serial receive interrupt plays on hardware.
	go func() {
		var buf [256]byte
		for {
			var n, err = host.Read(buf[:])
			if err != nil {
				logger.Error("host read failed", "err", err)
				return
			}
			for _, c := range buf[:n] {
				modem.HandleSerialByte(c)
			}
		}
	}()

	// Host transmit: drain decoded bytes toward the host.  Polling
	// with a short sleep stands in for the transmit-ready interrupt.
	go func() {
		var buf []byte
		for {
			buf = buf[:0]
			for len(buf) < 256 {
				var c, ok = modem.DrainHostByte()
				if !ok {
					break
				}
				buf = append(buf, c)
			}
			if len(buf) == 0 {
				time.Sleep(time.Millisecond)
				continue
			}
			if _, err := host.Write(buf); err != nil {
				logger.Error("host write failed", "err", err)
				return
			}
		}
	}()

	var sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var ticker = time.NewTicker(time.Duration(*tickMs) * time.Millisecond)
	defer ticker.Stop()

	logger.Info("on the air", "listen", *listenAddr, "peer", *peerAddr)

	for {
		select {
		case <-ticker.C:
			modem.Tick()
		case sig := <-sigs:
			logger.Info("shutting down", "signal", sig)
			return
		}
	}
}

// hostPort is the byte stream toward the host computer.
type hostPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// stdioPort glues stdin/stdout into one host port for running without
// a serial device.
type stdioPort struct{}

func (stdioPort) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioPort) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func openHost(deviceName string, baud int, logger *log.Logger) hostPort {
	if deviceName == "" {
		logger.Info("no serial device given, using stdio")
		return stdioPort{}
	}

	var t, err = term.Open(deviceName, term.RawMode)
	if err != nil {
		logger.Fatal("opening serial device", "device", deviceName, "err", err)
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		t.SetSpeed(baud)
	default:
		logger.Warn("unsupported serial speed, using 57600", "baud", baud)
		t.SetSpeed(57600)
	}

	fmt.Fprintf(os.Stderr, "Opened %s at %d baud\n", deviceName, baud)
	return t
}
