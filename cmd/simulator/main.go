package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// Team is the payload for a new maintenance team.
type Team struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// Equipment is the payload for a new asset.
type Equipment struct {
	Name                string `json:"name"`
	Category            string `json:"category"`
	Location            string `json:"location"`
	MaintenanceTeamID   string `json:"maintenance_team_id"`
	MaintenanceInterval int    `json:"maintenance_interval,omitempty"`
}

// Request is the payload for a new work order.
type Request struct {
	EquipmentID     string  `json:"equipment_id"`
	MaintenanceType string  `json:"maintenance_type"`
	Description     string  `json:"description"`
	ScheduleDate    string  `json:"schedule_date"`
	Priority        string  `json:"priority"`
	Duration        float64 `json:"duration,omitempty"`
}

var teamNames = []string{"Mechanical Crew", "Electrical Services", "IT Support Desk", "Vehicle Workshop"}

var catalog = map[string][]string{
	"machine":        {"Hydraulic Press", "CNC Lathe", "Injection Moulder", "Conveyor Belt"},
	"vehicle":        {"Forklift", "Delivery Van", "Pallet Truck"},
	"it_asset":       {"Core Switch", "File Server", "Label Printer"},
	"tool":           {"Torque Wrench Set", "Welding Rig"},
	"infrastructure": {"HVAC Unit", "Backup Generator", "Air Compressor"},
}

var locations = []string{"Bay 1", "Bay 2", "Bay 3", "Warehouse", "Server Room", "Yard"}

var faults = []string{"Unusual vibration", "Oil leak", "Overheating", "Fails to start", "Intermittent fault", "Worn belt"}

var authToken string

var client = &http.Client{Timeout: 10 * time.Second}

func authorizedPost(url string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	return client.Do(req)
}

// create posts payload and returns the id of the created record.
func create(url string, payload interface{}) (string, error) {
	resp, err := authorizedPost(url, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("creation failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("invalid id in response")
	}
	return result.Data.ID, nil
}

func createTeam(apiURL, name string, members int) (string, error) {
	team := Team{Name: name, MemberIDs: make([]string, 0, members)}
	for i := 0; i < members; i++ {
		team.MemberIDs = append(team.MemberIDs, fmt.Sprintf("tech-%03d", rand.Intn(1000)))
	}
	id, err := create(apiURL+"/teams", team)
	if err != nil {
		return "", fmt.Errorf("failed to create team: %w", err)
	}
	log.WithFields(log.Fields{"team_id": id, "name": name}).Info("Created team")
	return id, nil
}

func randomEquipment(teamID string) Equipment {
	categories := make([]string, 0, len(catalog))
	for c := range catalog {
		categories = append(categories, c)
	}
	category := categories[rand.Intn(len(categories))]
	names := catalog[category]
	return Equipment{
		Name:                names[rand.Intn(len(names))],
		Category:            category,
		Location:            locations[rand.Intn(len(locations))],
		MaintenanceTeamID:   teamID,
		MaintenanceInterval: []int{30, 60, 90, 180}[rand.Intn(4)],
	}
}

func createEquipment(apiURL string, eq Equipment) (string, error) {
	id, err := create(apiURL+"/equipment", eq)
	if err != nil {
		return "", fmt.Errorf("failed to create equipment: %w", err)
	}
	log.WithFields(log.Fields{"equipment_id": id, "name": eq.Name, "category": eq.Category}).Info("Created equipment")
	return id, nil
}

// Asset tracks wear on one piece of equipment between ticks.
type Asset struct {
	EquipmentID string
	Wear        float64
	OpenRequest string
	Started     bool
}

// breakdownRequest files a corrective work order, its priority rising
// with wear.
func breakdownRequest(a *Asset, now time.Time) Request {
	priority := "1"
	switch {
	case a.Wear > 0.9:
		priority = "3"
	case a.Wear > 0.7:
		priority = "2"
	}
	return Request{
		EquipmentID:     a.EquipmentID,
		MaintenanceType: "corrective",
		Description:     faults[rand.Intn(len(faults))],
		ScheduleDate:    now.Format("2006-01-02"),
		Priority:        priority,
		Duration:        float64(1 + rand.Intn(8)),
	}
}

func preventiveRequest(a *Asset, now time.Time) Request {
	return Request{
		EquipmentID:     a.EquipmentID,
		MaintenanceType: "preventive",
		Description:     "Scheduled inspection",
		ScheduleDate:    now.AddDate(0, 0, 1+rand.Intn(30)).Format("2006-01-02"),
		Priority:        "0",
		Duration:        2,
	}
}

func advance(apiURL string, a *Asset, action string) error {
	resp, err := authorizedPost(fmt.Sprintf("%s/maintenance/%s/%s", apiURL, a.OpenRequest, action), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed with status: %d", action, resp.StatusCode)
	}
	return nil
}

// step ages the asset and moves its open work order along: a fresh
// order is started, a started one is completed and resets the wear.
func step(apiURL string, a *Asset, now time.Time) {
	entry := log.WithField("equipment_id", a.EquipmentID)
	if a.OpenRequest != "" {
		action := "start"
		if a.Started {
			action = "done"
		}
		if err := advance(apiURL, a, action); err != nil {
			entry.WithError(err).Error("Failed to advance request")
			return
		}
		entry.WithFields(log.Fields{"request_id": a.OpenRequest, "action": action}).Info("Advanced request")
		if a.Started {
			a.OpenRequest, a.Started, a.Wear = "", false, 0
		} else {
			a.Started = true
		}
		return
	}

	a.Wear += rand.Float64() * 0.15
	var req Request
	switch {
	case a.Wear >= 1 || rand.Float64() < a.Wear*0.2:
		req = breakdownRequest(a, now)
	case rand.Float64() < 0.05:
		req = preventiveRequest(a, now)
	default:
		return
	}
	id, err := create(apiURL+"/maintenance", req)
	if err != nil {
		entry.WithError(err).Error("Failed to file request")
		return
	}
	a.OpenRequest = id
	entry.WithFields(log.Fields{"request_id": id, "type": req.MaintenanceType, "priority": req.Priority}).Info("Filed request")
}

func simulate(ctx context.Context, apiURL string, assets []*Asset, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			for _, a := range assets {
				step(apiURL, a, now)
			}
		}
	}
}

func main() {
	// JWT for the protected API
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	plantSize := 10
	if val := os.Getenv("PLANT_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			plantSize = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:5000/api"
	}

	interval := 5 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"plant_size": plantSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting plant simulation")

	teams := make([]string, 0, len(teamNames))
	for _, name := range teamNames {
		id, err := createTeam(apiURL, name, 2+rand.Intn(3))
		if err != nil {
			log.WithError(err).Error("Failed to create team")
			continue
		}
		teams = append(teams, id)
	}
	if len(teams) == 0 {
		log.Error("No teams created. Ensure SIM_AUTH_TOKEN is valid and API is reachable. Exiting.")
		return
	}

	assets := make([]*Asset, 0, plantSize)
	for i := 0; i < plantSize; i++ {
		id, err := createEquipment(apiURL, randomEquipment(teams[i%len(teams)]))
		if err != nil {
			log.WithError(err).Error("Failed to create equipment")
			continue
		}
		assets = append(assets, &Asset{EquipmentID: id, Wear: rand.Float64() * 0.5})
	}
	log.WithField("created_equipment", len(assets)).Info("Equipment creation completed")
	if len(assets) == 0 {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info("Maintenance simulation started")
	simulate(ctx, apiURL, assets, interval)
}
