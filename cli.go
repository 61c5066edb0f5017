package main

var cli struct {
	Verbose bool              `help:"Prints debug output by default"`
	Profile bool              `help:"Output a pprof profile"`
	Config  string            `help:"Path to an HCL or YAML config file" type:"path"`
	Set     map[string]string `help:"Override a config key, e.g. --set channel.snr_db=10" placeholder:"KEY=VALUE"`

	Simulate struct {
		Image  string `arg:"" help:"Image to transmit" type:"existingfile"`
		Output string `help:"Where to write the recovered image" default:"recovered.png" type:"path"`
		Report string `help:"Write a YAML report of the run" type:"path"`
	} `cmd:"" help:"Send an image through the link once and report the bit error rate"`
	Sweep struct {
		Image  string `arg:"" help:"Image to transmit" type:"existingfile"`
		Tui    bool   `help:"Show the sweep in the TUI"`
		Report string `help:"Write a YAML report of the sweep" type:"path"`
	} `cmd:"" help:"Measure the bit error rate over a range of SNRs"`
	Constellation struct {
	} `cmd:"" help:"List the 16-QAM constellation and the carrier parameters"`
}
