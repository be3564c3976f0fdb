package main

type Command struct {
	Version struct{} `cmd:"" help:"Print version information."`
	Serve   struct {
		Config   string `help:"config file path" short:"c" required:""`
		Database string `help:"database path" short:"d" required:""`
		DryRun   bool   `help:"don't write to the catalog, just print the output"`
	} `cmd:"" help:"Run the media service."`
	Refresh struct {
		Config   string `help:"config file path" short:"c" required:""`
		Database string `help:"database path" short:"d" required:""`
		DryRun   bool   `help:"sign links without storing them"`
	} `cmd:"" help:"Manually re-sign every stored media and archive link."`
}
