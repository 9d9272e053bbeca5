// Command btaudio-aplay streams raw PCM between stdio and one of btaudiod's
// exported PCM1 objects, the aplay/arecord-equivalent CLI from spec.md §7.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/godbus/dbus/v5"

	"github.com/cwsl/btaudiod/internal/busclient"
)

func main() {
	serviceName := flag.String("service", "org.btaudio", "bus service name")
	rootPath := flag.String("root", "/org/btaudio", "bus root object path")
	system := flag.Bool("system", true, "use the system bus instead of the session bus")
	pcmArg := flag.String("pcm", "", "PCM object path to open (see btaudio-ctl -list-pcms)")
	mode := flag.String("mode", "source", "open mode: \"source\" (write PCM to the peer) or \"sink\" (read PCM from the peer)")
	flag.Parse()

	if *pcmArg == "" {
		fmt.Fprintln(os.Stderr, "btaudio-aplay: -pcm is required")
		os.Exit(2)
	}

	c, err := busclient.Dial(*system, *serviceName, dbus.ObjectPath(*rootPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "btaudio-aplay:", err)
		os.Exit(1)
	}
	defer c.Close()

	data, ctrl, err := c.Open(dbus.ObjectPath(*pcmArg), *mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "btaudio-aplay:", err)
		os.Exit(1)
	}
	defer data.Close()
	defer ctrl.Close()

	switch *mode {
	case "source":
		// Stdin carries PCM destined for the Bluetooth peer.
		if _, err := io.Copy(data, os.Stdin); err != nil && err != io.EOF {
			fmt.Fprintln(os.Stderr, "btaudio-aplay: write:", err)
			os.Exit(1)
		}
	case "sink":
		// Stdout carries PCM captured from the Bluetooth peer.
		if _, err := io.Copy(os.Stdout, data); err != nil && err != io.EOF {
			fmt.Fprintln(os.Stderr, "btaudio-aplay: read:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "btaudio-aplay: -mode must be \"sink\" or \"source\"")
		os.Exit(2)
	}

	if reply, err := busclient.SendControl(ctrl, "Drain"); err == nil {
		fmt.Fprintln(os.Stderr, "btaudio-aplay: drain:", reply)
	}
}
