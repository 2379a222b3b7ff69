package devicesim

import "time"

type Options struct {
	Broker    string        `short:"b" long:"broker" description:"mqtt broker host" default:"localhost"`
	Port      int           `short:"p" long:"port" description:"mqtt broker port" default:"1883"`
	Prefix    string        `long:"prefix" description:"topic prefix shared with the bridge" default:"pebble"`
	Device    string        `short:"d" long:"device" description:"device id to publish as" default:"devicesim"`
	Station   string        `short:"s" long:"station" description:"station name" required:"true"`
	Direction string        `short:"r" long:"direction" description:"direction key, omitted when empty"`
	Timeout   time.Duration `short:"t" long:"timeout" description:"how long to wait for the reply" default:"10s"`
	Ready     bool          `long:"ready" description:"announce the device with a ready event first"`
}
