package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/condo-portal/internal/auth"
	"github.com/example/condo-portal/internal/booking"
	"github.com/example/condo-portal/internal/db"
)

//go:embed templates/*.html
var fs embed.FS

// Server is the thin presentation layer over the booking core. All decisions
// live in booking.Service; handlers only translate forms and render outcomes.
type Server struct {
	Auth    *auth.Store
	Booking *booking.Service

	BaseURL  string
	SlotSize time.Duration
}

type tmplData struct {
	Title string
	User  auth.User

	Flash     string
	Amenities []booking.Amenity
	Amenity   booking.Amenity
	Date      string
	IsToday   bool
	Slots     []slotView
	History   []historyRow
	From, To  string
}

type slotView struct {
	Label string
	Start string // RFC3339, posted back on booking
	End   string
}

type historyRow struct {
	booking.Reservation
	AmenityName string
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleAmenities)))
	mux.Handle("/amenities/", s.Auth.RequireAuth(http.HandlerFunc(s.handleAmenityDay)))
	mux.Handle("/reserve", s.Auth.RequireAuth(http.HandlerFunc(s.handleReserve)))
	mux.Handle("/reservations/cancel", s.Auth.RequireAuth(http.HandlerFunc(s.handleCancel)))
	mux.Handle("/reservations/approve", s.Auth.RequireAuth(http.HandlerFunc(s.handleApprove)))
	mux.Handle("/history", s.Auth.RequireAuth(http.HandlerFunc(s.handleHistory)))

	return logging(mux)
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		u, err := s.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, u.ID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleAmenities(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	amenities, err := s.Booking.Amenities.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/amenities.html", tmplData{
		Title:     "Amenities",
		User:      u,
		Flash:     r.URL.Query().Get("flash"),
		Amenities: amenities,
	})
}

// handleAmenityDay renders the slot picker for /amenities/{id}?date=YYYY-MM-DD.
func (s *Server) handleAmenityDay(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	idStr := strings.TrimPrefix(r.URL.Path, "/amenities/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	amenity, err := s.Booking.Amenities.GetByID(r.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	loc := amenity.Location()
	today := time.Now().In(loc)
	date := today
	if q := r.URL.Query().Get("date"); q != "" {
		if d, err := time.ParseInLocation("2006-01-02", q, loc); err == nil {
			date = d
		}
	}

	slots, err := s.Booking.FreeSlotsFor(r.Context(), id, date, s.SlotSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]slotView, 0, len(slots))
	for _, sl := range slots {
		views = append(views, slotView{
			Label: fmt.Sprintf("%s – %s", sl.Start.In(loc).Format("15:04"), sl.End.In(loc).Format("15:04")),
			Start: sl.Start.Format(time.RFC3339),
			End:   sl.End.Format(time.RFC3339),
		})
	}

	s.render(w, "templates/amenity.html", tmplData{
		Title:   amenity.Name,
		User:    u,
		Flash:   r.URL.Query().Get("flash"),
		Amenity: amenity,
		Date:    date.Format("2006-01-02"),
		IsToday: date.Format("2006-01-02") == today.Format("2006-01-02"),
		Slots:   views,
	})
}

// handleReserve books a picked slot. The portal confirms directly: residents
// get APPROVED reservations without a separate approval step.
func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	amenityID, err := strconv.ParseInt(r.FormValue("amenity_id"), 10, 64)
	if err != nil {
		http.Error(w, "bad amenity id", http.StatusBadRequest)
		return
	}
	start, err1 := time.Parse(time.RFC3339, r.FormValue("start"))
	end, err2 := time.Parse(time.RFC3339, r.FormValue("end"))
	if err1 != nil || err2 != nil {
		s.redirectAmenity(w, r, amenityID, "", "Invalid start/end")
		return
	}

	_, err = s.Booking.Create(r.Context(), actorOf(u), booking.CreateRequest{
		AmenityID:     amenityID,
		Start:         start,
		End:           end,
		AllowSharing:  r.FormValue("allow_sharing") == "on",
		Note:          strings.TrimSpace(r.FormValue("note")),
		InitialStatus: booking.StatusApproved,
	})
	if err != nil {
		s.redirectAmenity(w, r, amenityID, start.Format("2006-01-02"), flashFor(err))
		return
	}
	http.Redirect(w, r, "/?flash="+template.URLQueryEscaper("Reservation confirmed"), http.StatusFound)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.FormValue("reservation_id"), 10, 64)
	if err != nil {
		http.Error(w, "bad reservation id", http.StatusBadRequest)
		return
	}

	if err := s.Booking.Cancel(r.Context(), actorOf(u), id); err != nil {
		http.Redirect(w, r, "/history?flash="+template.URLQueryEscaper(flashFor(err)), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/history?flash="+template.URLQueryEscaper("Reservation cancelled"), http.StatusFound)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.FormValue("reservation_id"), 10, 64)
	if err != nil {
		http.Error(w, "bad reservation id", http.StatusBadRequest)
		return
	}

	if err := s.Booking.Approve(r.Context(), actorOf(u), id); err != nil {
		http.Redirect(w, r, "/history?flash="+template.URLQueryEscaper(flashFor(err)), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/history?flash="+template.URLQueryEscaper("Reservation approved"), http.StatusFound)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 60)
	if q := r.URL.Query().Get("from"); q != "" {
		if d, err := time.Parse("2006-01-02", q); err == nil {
			from = d
		}
	}
	if q := r.URL.Query().Get("to"); q != "" {
		if d, err := time.Parse("2006-01-02", q); err == nil {
			to = d.AddDate(0, 0, 1)
		}
	}

	rs, err := s.Booking.History(r.Context(), actorOf(u), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rows := make([]historyRow, 0, len(rs))
	for _, res := range rs {
		row := historyRow{Reservation: res}
		if a, err := s.Booking.Amenities.GetByID(r.Context(), res.AmenityID); err == nil {
			row.AmenityName = a.Name
		}
		rows = append(rows, row)
	}

	s.render(w, "templates/history.html", tmplData{
		Title:   "My reservations",
		User:    u,
		Flash:   r.URL.Query().Get("flash"),
		History: rows,
		From:    from.Format("2006-01-02"),
		To:      to.Format("2006-01-02"),
	})
}

func actorOf(u auth.User) booking.Actor {
	return booking.Actor{UserID: u.ID, Role: u.Role}
}

// flashFor maps core outcomes to the messages residents see.
func flashFor(err error) string {
	switch booking.KindOf(err) {
	case booking.KindInvalidRange:
		return "Invalid period: start must be before end."
	case booking.KindWeekdayNotAllowed:
		return "This weekday is not available for the amenity."
	case booking.KindOutsideHours:
		return "Outside the amenity's opening hours."
	case booking.KindDateBlocked:
		return "This date is blocked for reservations."
	case booking.KindOverlapDenied:
		return "The period conflicts with an existing reservation."
	case booking.KindForbidden:
		return "You do not have permission for that."
	case booking.KindAlreadyStarted:
		return "Reservations that already started cannot be cancelled."
	case booking.KindInvalidTransition:
		return "That reservation can no longer change state."
	}
	var re *booking.RuleError
	if errors.As(err, &re) {
		return re.Error()
	}
	return "Something went wrong; try again."
}

func (s *Server) redirectAmenity(w http.ResponseWriter, r *http.Request, amenityID int64, date, flash string) {
	url := fmt.Sprintf("/amenities/%d?flash=%s", amenityID, template.URLQueryEscaper(flash))
	if date != "" {
		url += "&date=" + date
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

// Start serves h on addr and shuts down cleanly when ctx ends.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("listening on %s", addr)
	return srv.ListenAndServe()
}
