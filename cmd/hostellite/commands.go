package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"hostellite/internal/booking"
	"hostellite/internal/database"
	"hostellite/internal/domain"
	"hostellite/internal/models"
	"hostellite/internal/payment"
	"hostellite/internal/worker"
)

var errUsage = errors.New("usage")

const dateLayout = "2006-01-02"

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"login", "log in and store the session", (*app).login},
	{"logout", "clear the stored session", (*app).logout},
	{"rooms", "list rooms of a hostel", (*app).rooms},
	{"reserve", "book a room and pay", (*app).reserve},
	{"bookings", "list your bookings", (*app).bookings},
	{"cancel", "cancel a booking", (*app).cancel},
	{"export", "export bookings to Excel", (*app).exportBookings},
	{"review", "review a hostel you stayed at", (*app).review},
	{"admin", "show the admin dashboard", (*app).admin},
	{"reconcile", "replay unconfirmed payments", (*app).reconcile},
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return errUsage
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(a, ctx, args[1:])
		}
	}
	a.printf("unknown command %q\n\n", args[0])
	a.usage()
	return errUsage
}

func (a *app) usage() {
	a.printf("Usage: hostellite <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		a.printf("  %-10s %s\n", c.name, c.summary)
	}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("HOSTELLITE_PASSWORD"), "account password (or HOSTELLITE_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	resp, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := a.session.SetCredential(ctx, resp.Token, resp.User.Role); err != nil {
		return err
	}

	name := resp.User.Name
	if name == "" {
		name = resp.User.Email
	}
	a.printf("Logged in as %s (%s)\n", name, a.session.Role())
	return nil
}

func (a *app) logout(ctx context.Context, _ []string) error {
	if err := a.session.Clear(ctx); err != nil {
		return err
	}
	a.printf("Logged out\n")
	return nil
}

func (a *app) rooms(ctx context.Context, args []string) error {
	fs := a.flags("rooms")
	hostelID := fs.String("hostel", "", "hostel id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *hostelID == "" {
		return domain.ValidationError{Field: "hostel", Msg: "is required"}
	}

	rooms, err := a.client.ListRooms(ctx, *hostelID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tID\tFREE BEDS\tPRICE/BED")
	for _, r := range rooms {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", r.RoomNumber, r.ID, r.AvailableBeds, r.TotalBeds,
			payment.FormatAmount(models.ToMinorUnits(r.PricePerBed), a.cfg.Payment.Currency))
	}
	return tw.Flush()
}

func (a *app) reserve(ctx context.Context, args []string) error {
	fs := a.flags("reserve")
	hostelID := fs.String("hostel", "", "hostel id")
	roomID := fs.String("room", "", "room id")
	checkInRaw := fs.String("checkin", "", "check-in date (YYYY-MM-DD)")
	checkOutRaw := fs.String("checkout", "", "check-out date (YYYY-MM-DD), defaults to the minimum stay")
	seats := fs.Int("seats", 1, "number of beds")
	method := fs.String("method", string(models.PaymentOnline), "payment method: online or cash")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	checkIn, err := parseDate("check-in date", *checkInRaw)
	if err != nil {
		return err
	}
	var checkOut time.Time
	if *checkOutRaw != "" {
		if checkOut, err = parseDate("check-out date", *checkOutRaw); err != nil {
			return err
		}
	}

	room, err := a.client.FindRoom(ctx, *hostelID, *roomID)
	if err != nil {
		return err
	}

	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	req, err := booking.NewReservationRequest(*hostelID, *room, checkIn, checkOut, *seats,
		models.PaymentMethod(strings.ToLower(*method)), orch.MinimumStayMonths())
	if err != nil {
		a.printf("%s\n", booking.Message(err))
		return err
	}

	if req.Clamped() && !checkOut.IsZero() {
		a.printf("Minimum stay is %d month(s); check-out moved to %s\n", orch.MinimumStayMonths(), req.CheckOut().Format(dateLayout))
	}
	a.printf("Room %s, %d bed(s), %s to %s (%d month(s))\nTotal: %s\n",
		room.RoomNumber, req.Seats(), req.CheckIn().Format(dateLayout), req.CheckOut().Format(dateLayout), req.Months(),
		payment.FormatAmount(models.ToMinorUnits(req.Amount()), a.cfg.Payment.Currency))

	st, err := orch.Run(ctx, req)
	a.client.InvalidateRooms(ctx, *hostelID)

	switch s := st.(type) {
	case booking.Completed:
		if s.PaymentIntentID == "" {
			a.printf("Booking %s created. Pay at the hostel on arrival.\n", s.Booking.ID)
		} else {
			a.printf("Booking %s confirmed. Payment reference: %s\n", s.Booking.ID, s.PaymentIntentID)
		}
	case booking.CancelledByUser:
		a.printf("Payment cancelled. Booking %s was left pending and unpaid; release it with: cancel -booking %s\n", s.Booking.ID, s.Booking.ID)
	case booking.Failed:
		a.printf("%s\n", s.Message)
		if s.Retryable() {
			a.printf("Nothing was charged. You can try again.\n")
		}
	}
	return err
}

func (a *app) bookings(ctx context.Context, args []string) error {
	fs := a.flags("bookings")
	owner := fs.Bool("owner", false, "list bookings of your hostels")
	all := fs.Bool("all", false, "include cancelled and rejected bookings")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	list, err := a.listBookings(ctx, *owner, *all)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No bookings\n")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOSTEL\tROOM\tCHECK-IN\tCHECK-OUT\tSEATS\tAMOUNT\tSTATUS\tPAYMENT")
	for _, b := range list {
		hostel := b.HostelRef()
		if b.Hostel != nil && b.Hostel.Name != "" {
			hostel = b.Hostel.Name
		}
		room := b.RoomRef()
		if b.Room != nil && b.Room.RoomNumber != "" {
			room = b.Room.RoomNumber
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			b.ID, hostel, room, b.CheckInDate.Format(dateLayout), b.CheckOutDate.Format(dateLayout), b.SeatsBooked,
			payment.FormatAmount(models.ToMinorUnits(b.Amount), a.cfg.Payment.Currency), b.Status, b.PaymentStatus)
	}
	return tw.Flush()
}

func (a *app) listBookings(ctx context.Context, owner, all bool) ([]models.Booking, error) {
	var (
		list []models.Booking
		err  error
	)
	if owner {
		list, err = a.client.ListOwnerBookings(ctx)
	} else {
		list, err = a.client.ListUserBookings(ctx)
	}
	if err != nil {
		return nil, err
	}
	if !all {
		list = models.ActiveBookings(list)
	}
	return list, nil
}

func (a *app) cancel(ctx context.Context, args []string) error {
	fs := a.flags("cancel")
	bookingID := fs.String("booking", "", "booking id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *bookingID == "" && fs.NArg() > 0 {
		*bookingID = fs.Arg(0)
	}
	if *bookingID == "" {
		return domain.ValidationError{Field: "booking", Msg: "is required"}
	}

	if err := a.client.CancelBooking(ctx, *bookingID); err != nil {
		return err
	}
	a.printf("Booking %s cancelled\n", *bookingID)
	return nil
}

func (a *app) exportBookings(ctx context.Context, args []string) error {
	fs := a.flags("export")
	owner := fs.Bool("owner", false, "export bookings of your hostels")
	all := fs.Bool("all", true, "include cancelled and rejected bookings")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	list, err := a.listBookings(ctx, *owner, *all)
	if err != nil {
		return err
	}

	title := "My bookings"
	if *owner {
		title = "Hostel bookings"
	}
	path, err := a.exporter.Bookings(list, title)
	if err != nil {
		return err
	}
	a.printf("Exported %d booking(s) to %s\n", len(list), path)
	return nil
}

func (a *app) review(ctx context.Context, args []string) error {
	fs := a.flags("review")
	hostelID := fs.String("hostel", "", "hostel id")
	bookingID := fs.String("booking", "", "booking id of the completed stay")
	rating := fs.Int("rating", 0, "rating from 1 to 5")
	title := fs.String("title", "", "review title")
	comment := fs.String("comment", "", "review text")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	eligible, err := a.client.EligibleBookings(ctx, *hostelID)
	if err != nil {
		return err
	}
	if *bookingID == "" && len(eligible) == 1 {
		*bookingID = eligible[0].ID
	}
	found := false
	for _, b := range eligible {
		if b.ID == *bookingID {
			found = true
			break
		}
	}
	if !found {
		return domain.ValidationError{Field: "booking", Msg: "is not eligible for a review of this hostel"}
	}

	review, err := a.client.CreateReview(ctx, models.ReviewRequest{
		HostelID:  *hostelID,
		BookingID: *bookingID,
		Rating:    *rating,
		Title:     *title,
		Comment:   *comment,
	})
	if err != nil {
		return err
	}
	a.printf("Review %s posted\n", review.ID)
	return nil
}

func (a *app) admin(ctx context.Context, _ []string) error {
	if a.session.Role() != models.RoleAdmin {
		return domain.AuthError{Msg: "admin role required"}
	}

	summary, err := a.client.AdminDashboard(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Hostels\t%d\n", summary.TotalHostels)
	fmt.Fprintf(tw, "Users\t%d\n", summary.TotalUsers)
	fmt.Fprintf(tw, "Bookings\t%d\n", summary.TotalBookings)
	fmt.Fprintf(tw, "Pending approvals\t%d\n", summary.PendingApprovals)
	for source, msg := range summary.Errors {
		fmt.Fprintf(tw, "! %s\t%s\n", source, msg)
	}
	return tw.Flush()
}

func (a *app) reconcile(ctx context.Context, args []string) error {
	fs := a.flags("reconcile")
	once := fs.Bool("once", false, "process due tasks once and exit")
	list := fs.Bool("list", false, "list escalated payments and exit")
	exportTasks := fs.Bool("export", false, "with -list, also write them to Excel")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	db, err := a.ledger()
	if err != nil {
		return err
	}

	if *list {
		return a.listEscalated(ctx, db, *exportTasks)
	}

	opts := []worker.Option{worker.WithEvents(a.bus)}
	if a.redis != nil {
		opts = append(opts, worker.WithDeadLetter(a.redis))
	}
	w := worker.NewConfirmationWorker(db, a.client, a.cfg.Reconcile, a.logger, opts...)

	if *once {
		n, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		counts, err := db.CountConfirmationTasks(ctx)
		if err != nil {
			return err
		}
		a.printf("Processed %d task(s); pending %d, retry %d, escalated %d\n", n,
			counts[models.TaskPending], counts[models.TaskRetry], counts[models.TaskEscalated])
		return nil
	}

	backup := database.NewBackupService(db, a.cfg.Reconcile.Backup, a.logger)
	go backup.Start(ctx)

	w.Start(ctx)
	return nil
}

func (a *app) listEscalated(ctx context.Context, db *database.DB, toExcel bool) error {
	tasks, err := db.GetEscalatedTasks(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		a.printf("No escalated payments\n")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tBOOKING\tPAYMENT INTENT\tRETRIES\tLAST ERROR")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", t.ID, t.BookingID, t.PaymentIntentID, t.RetryCount, t.LastError)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if toExcel {
		path, err := a.exporter.ConfirmationTasks(tasks)
		if err != nil {
			return err
		}
		a.printf("Exported to %s\n", path)
	}
	return nil
}

func parseDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, domain.ValidationError{Field: field, Msg: "is required"}
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, domain.ValidationError{Field: field, Msg: "must be YYYY-MM-DD", Err: err}
	}
	return t, nil
}
