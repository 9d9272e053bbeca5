// Command btaudio-ctl lists btaudiod's exported PCMs and adjusts per-PCM
// volume, the bluealsa-ctl-equivalent CLI from spec.md §7.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/godbus/dbus/v5"

	"github.com/cwsl/btaudiod/internal/busclient"
)

func main() {
	serviceName := flag.String("service", "org.btaudio", "bus service name")
	rootPath := flag.String("root", "/org/btaudio", "bus root object path")
	system := flag.Bool("system", true, "use the system bus instead of the session bus")
	list := flag.Bool("list-pcms", false, "list every exported PCM object")
	volumeArg := flag.String("volume", "", "\"<pcm-path>=<0-65535>\": set a PCM's Volume property")
	flag.Parse()

	c, err := busclient.Dial(*system, *serviceName, dbus.ObjectPath(*rootPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "btaudio-ctl:", err)
		os.Exit(1)
	}
	defer c.Close()

	switch {
	case *volumeArg != "":
		if err := setVolume(c, *volumeArg); err != nil {
			fmt.Fprintln(os.Stderr, "btaudio-ctl:", err)
			os.Exit(1)
		}
	case *list:
		if err := listPCMs(c); err != nil {
			fmt.Fprintln(os.Stderr, "btaudio-ctl:", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func listPCMs(c *busclient.Client) error {
	pcms, err := c.ListPCMs()
	if err != nil {
		return err
	}
	for _, p := range pcms {
		fmt.Printf("%s\n", p.Path)
		fmt.Printf("  Device: %s\n", p.Device)
		fmt.Printf("  Modes: %v\n", p.Modes)
		fmt.Printf("  Channels: %d  Sampling: %d Hz  Codec: 0x%04x\n", p.Channels, p.Sampling, p.Codec)
		fmt.Printf("  Delay: %d.%dms  Volume: %d  Battery: %d%%\n", p.Delay/10, p.Delay%10, p.Volume, p.Battery)
	}
	return nil
}

func setVolume(c *busclient.Client, arg string) error {
	path, rawVolume, ok := splitVolumeArg(arg)
	if !ok {
		return fmt.Errorf("-volume must be \"<pcm-path>=<0-65535>\", got %q", arg)
	}
	volume, err := strconv.ParseUint(rawVolume, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid volume %q: %w", rawVolume, err)
	}
	return c.SetVolume(dbus.ObjectPath(path), uint16(volume))
}

func splitVolumeArg(arg string) (path, volume string, ok bool) {
	for i := len(arg) - 1; i >= 0; i-- {
		if arg[i] == '=' {
			return arg[:i], arg[i+1:], true
		}
	}
	return "", "", false
}
