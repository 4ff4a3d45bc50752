package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

// RaceConfig describes a seat race: Students fresh accounts all try to
// register for EventID at the same instant.
type RaceConfig struct {
	EventID  int64
	Students int
	// Password is used for every synthetic account.
	Password string
}

type RaceResult struct {
	Registered        int
	Rejected          int
	Errors            int
	MaxCapacity       *int
	CountBefore       int
	RegistrationCount int
}

// CapacityHeld reports whether the server kept the capacity invariant and
// the cached counter agrees with the accepted registrations.
func (r RaceResult) CapacityHeld() bool {
	if r.MaxCapacity != nil && r.RegistrationCount > *r.MaxCapacity {
		return false
	}
	return r.RegistrationCount == r.CountBefore+r.Registered
}

func (r RaceResult) String() string {
	capacity := "unlimited"
	if r.MaxCapacity != nil {
		capacity = fmt.Sprint(*r.MaxCapacity)
	}
	return fmt.Sprintf("registered=%d rejected=%d errors=%d capacity=%s count_before=%d count_after=%d held=%t",
		r.Registered, r.Rejected, r.Errors, capacity, r.CountBefore, r.RegistrationCount, r.CapacityHeld())
}

type sessionBody struct {
	Token struct {
		AccessToken string `json:"access_token"`
	} `json:"token"`
}

type eventBody struct {
	MaxCapacity       *int `json:"max_capacity"`
	RegistrationCount int  `json:"registration_count"`
}

// SeatRace signs up the synthetic students, then releases all of their
// registration requests together and reads the event back.
func (lt *LoadTester) SeatRace(ctx context.Context, cfg RaceConfig) (*RaceResult, error) {
	if cfg.EventID <= 0 || cfg.Students <= 0 {
		return nil, fmt.Errorf("event id and student count must be positive")
	}
	if cfg.Password == "" {
		cfg.Password = "load-test-pass"
	}

	tokens, err := lt.signUp(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var before eventBody
	if err := lt.getEvent(ctx, tokens[0], cfg.EventID, &before); err != nil {
		return nil, err
	}

	statuses := make([]int, len(tokens))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			client := lt.as(token)
			status, err := client.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/register", cfg.EventID), map[string]any{}, nil)
			if err != nil {
				status = 0
			}
			statuses[i] = status
		}()
	}
	close(start)
	wg.Wait()

	result := &RaceResult{CountBefore: before.RegistrationCount}
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			result.Registered++
		case http.StatusConflict:
			result.Rejected++
		default:
			result.Errors++
		}
	}

	var after eventBody
	if err := lt.getEvent(ctx, tokens[0], cfg.EventID, &after); err != nil {
		return nil, err
	}
	result.MaxCapacity = after.MaxCapacity
	result.RegistrationCount = after.RegistrationCount
	return result, nil
}

func (lt *LoadTester) signUp(ctx context.Context, cfg RaceConfig) ([]string, error) {
	tokens := make([]string, cfg.Students)
	run := strings.ToLower(ulid.Make().String())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range tokens {
		g.Go(func() error {
			email := fmt.Sprintf("load-%s-%d@unisphere.test", run, i)
			body := map[string]any{
				"personal_info":  map[string]string{"first_name": "Load", "last_name": fmt.Sprintf("Student %d", i)},
				"education_info": map[string]string{},
				"account_info":   map[string]string{"email": email, "password": cfg.Password, "confirm_password": cfg.Password},
			}
			var session sessionBody
			status, err := lt.as("").do(gctx, http.MethodPost, "/api/v1/auth/register", body, &session)
			if err != nil {
				return fmt.Errorf("register %s: %w", email, err)
			}
			if status != http.StatusCreated {
				return fmt.Errorf("register %s: status %d", email, status)
			}
			tokens[i] = session.Token.AccessToken
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (lt *LoadTester) getEvent(ctx context.Context, token string, eventID int64, out *eventBody) error {
	status, err := lt.as(token).do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/events/%d", eventID), nil, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("get event %d: status %d", eventID, status)
	}
	return nil
}

// as returns a copy of lt that authenticates with token.
func (lt *LoadTester) as(token string) *LoadTester {
	return &LoadTester{baseURL: lt.baseURL, token: token, httpClient: lt.httpClient}
}
