// Command ridectl drives the ride API from a terminal: riders book rides,
// drivers list, accept and finish them, and report their location.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/newrelic/go-agent/v3/newrelic"

	"ridehail/internal/apiclient"
	"ridehail/internal/board"
	"ridehail/internal/booking"
	"ridehail/internal/config"
	"ridehail/internal/domain"
	"ridehail/internal/failure"
	"ridehail/internal/logging"
	"ridehail/internal/position"
)

const usage = `Usage:
  ridectl <command> [flags]

Commands:
  login    -role=user|driver -id=<id> -password=<pw>
  book     -user=<id> -from=<lat,lng> -to=<lat,lng>
  board    -driver=<id>
  accept   -driver=<id> -ride=<id>
  finish   -driver=<id> -ride=<id>
  cancel   -ride=<id> [-reason=<text>]
  ride     -id=<id>
  locate   -driver=<id> -at=<lat,lng> [-every=30s]

Environment:
  RIDE_API_URL, RIDE_API_TIMEOUT, GEOLOCATION_TIMEOUT, LOG_LEVEL
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerTo(os.Stderr, cfg.LogLevel)
	client := newClient(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli{client: client, cfg: cfg, logger: logger, out: os.Stdout}
	if err := cmd.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, failure.UserMessage(err))
		logger.Debug("command failed", "command", os.Args[1], "kind", failure.KindOf(err).String(), "error", err)
		os.Exit(1)
	}
}

func newClient(cfg *config.ClientConfig, logger *slog.Logger) *apiclient.Client {
	opts := []apiclient.Option{apiclient.WithLogger(logger)}
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err := newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			opts = append(opts, apiclient.WithNewRelic(nrApp))
		}
	}
	return apiclient.New(cfg.APIURL, cfg.APITimeout, opts...)
}

type cli struct {
	client *apiclient.Client
	cfg    *config.ClientConfig
	logger *slog.Logger
	out    io.Writer
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return c.login(ctx, args)
	case "book":
		return c.book(ctx, args)
	case "board":
		return c.board(ctx, args)
	case "accept":
		return c.act(ctx, args, board.ActionConfirm)
	case "finish":
		return c.act(ctx, args, board.ActionFinish)
	case "cancel":
		return c.cancel(ctx, args)
	case "ride":
		return c.ride(ctx, args)
	case "locate":
		return c.locate(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	role := fs.String("role", "user", "user or driver")
	id := fs.String("id", "", "account id")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var check apiclient.CredentialCheck
	var err error
	switch *role {
	case "user":
		check, err = c.client.ValidateUser(ctx, *id, *password)
	case "driver":
		check, err = c.client.ValidateDriver(ctx, *id, *password)
	default:
		return failure.Validation("login", "Role must be user or driver.", fmt.Errorf("unknown role %q", *role))
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, check.String())
	if check != apiclient.CredentialsValid {
		return failure.Validation("login", "Login failed: "+check.String()+".", errors.New(check.String()))
	}
	return nil
}

func (c *cli) book(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	user := fs.String("user", "", "rider id")
	from := fs.String("from", "", "pickup as lat,lng")
	to := fs.String("to", "", "drop-off as lat,lng")
	if err := fs.Parse(args); err != nil {
		return err
	}

	selection := booking.NewSelection()
	if err := pick(selection, domain.SlotSource, *from); err != nil {
		return err
	}
	if err := pick(selection, domain.SlotDestination, *to); err != nil {
		return err
	}

	coordinator := booking.NewCoordinator(c.client, selection, c.logger)
	rideID, err := coordinator.SubmitSelection(ctx, *user)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Ride created: %s\n", rideID)
	return nil
}

func pick(selection *booking.Selection, slot domain.LocationSlot, raw string) error {
	point, err := parsePoint(raw)
	if err != nil {
		return failure.Validation("select "+slot.String(), "Please choose a valid "+slot.String()+" as lat,lng.", err)
	}
	if err := selection.BeginSelection(slot); err != nil {
		return err
	}
	return selection.Confirm(point)
}

func (c *cli) board(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("board", flag.ContinueOnError)
	driver := fs.String("driver", "", "driver id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b := board.New(c.client, *driver, c.logger)
	rows, err := b.ListRides(ctx)
	if err != nil {
		return err
	}
	if b.State() == board.StateEmpty {
		fmt.Fprintln(c.out, "No rides available.")
		return nil
	}
	printRows(c.out, rows)
	return nil
}

func (c *cli) act(ctx context.Context, args []string, action board.Action) error {
	fs := flag.NewFlagSet(strings.ToLower(action.String()), flag.ContinueOnError)
	driver := fs.String("driver", "", "driver id")
	rideID := fs.String("ride", "", "ride id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b := board.New(c.client, *driver, c.logger)
	if _, err := b.ListRides(ctx); err != nil {
		return err
	}

	var row board.Row
	var err error
	if action == board.ActionConfirm {
		row, err = b.AcceptAndRefresh(ctx, *rideID)
	} else {
		row, err = b.FinishAndRefresh(ctx, *rideID)
	}
	if err != nil {
		if failure.Is(err, failure.KindStateConflict) {
			printRows(c.out, b.Rows())
		}
		return err
	}

	if row.Ride.Fare != nil {
		fmt.Fprintf(c.out, "Ride %s %s, fare %.2f\n", row.Ride.ID, row.Ride.Status, *row.Ride.Fare)
	} else {
		fmt.Fprintf(c.out, "Ride %s %s\n", row.Ride.ID, row.Ride.Status)
	}
	return nil
}

func (c *cli) cancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	rideID := fs.String("ride", "", "ride id")
	reason := fs.String("reason", "", "why the ride is cancelled")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := c.client.CancelRide(ctx, *rideID, *reason); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Ride %s cancelled\n", *rideID)
	return nil
}

func (c *cli) ride(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ride", flag.ContinueOnError)
	rideID := fs.String("id", "", "ride id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ride, err := c.client.GetRide(ctx, *rideID)
	if err != nil {
		return err
	}
	printRows(c.out, []board.Row{{Ride: ride}})
	return nil
}

func (c *cli) locate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("locate", flag.ContinueOnError)
	driver := fs.String("driver", "", "driver id")
	at := fs.String("at", "", "current position as lat,lng")
	every := fs.Duration("every", 0, "keep reporting at this interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	point, err := parsePoint(*at)
	if err != nil {
		return failure.Validation("locate", "Please give the position as lat,lng.", err)
	}

	reporter := position.NewReporter(position.FixedLocator{Point: point}, c.client, c.cfg.GeolocationTimeout, c.logger)
	if *every <= 0 {
		reported, err := reporter.CaptureAndReport(ctx, *driver)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Location updated: %s\n", reported)
		return nil
	}

	fmt.Fprintf(c.out, "Reporting %s every %s, Ctrl-C to stop\n", point, *every)
	if err := reporter.Run(ctx, *driver, *every); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printRows(w io.Writer, rows []board.Row) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RIDE\tSTATUS\tPICKUP\tDROP-OFF\tDRIVER\tFARE\tACTION")
	for _, r := range rows {
		fare := "-"
		if r.Ride.Fare != nil {
			fare = strconv.FormatFloat(*r.Ride.Fare, 'f', 2, 64)
		}
		driver := r.Ride.DriverID
		if driver == "" {
			driver = "-"
		}
		action := r.Action.String()
		if r.Pending {
			action = "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Ride.ID, r.Ride.Status, r.Ride.Pickup, r.Ride.Dropoff, driver, fare, action)
	}
	_ = tw.Flush()
}

// parsePoint reads "lat,lng".
func parsePoint(raw string) (domain.Geopoint, error) {
	latRaw, lngRaw, ok := strings.Cut(raw, ",")
	if !ok {
		return domain.Geopoint{}, fmt.Errorf("%q is not lat,lng", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return domain.Geopoint{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil {
		return domain.Geopoint{}, err
	}
	point := domain.Geopoint{Latitude: lat, Longitude: lng}
	if !point.Valid() {
		return domain.Geopoint{}, domain.ErrInvalidLocation
	}
	return point, nil
}
