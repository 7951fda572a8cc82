package archive

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxRecaps = "blackout_recaps"

// Meili indexes session recaps in Meilisearch. The client keeps a
// background health check so an outage degrades search to the Postgres
// fallback instead of failing requests.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates the client and configures the recap index. The
// caller should proceed without it if the initial connection fails.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("archive: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxRecaps,
		PrimaryKey: "code",
	}); err != nil {
		log.Printf("archive: create index %s (may already exist): %v", idxRecaps, err)
	}

	index := m.client.Index(idxRecaps)
	filterable := []interface{}{"mvp", "reason"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("archive: update filterable attrs: %v", err)
	}
	searchable := []string{"code", "mvp", "players"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("archive: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("archive: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexRecap adds or updates one recap.
func (m *Meili) IndexRecap(recap Recap) error {
	_, err := m.client.Index(idxRecaps).AddDocuments([]Recap{recap}, nil)
	return err
}

// Search queries the recap index.
func (m *Meili) Search(query string, limit int) ([]Recap, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.Index(idxRecaps).Search(query, &meili.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	recaps := make([]Recap, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		recaps = append(recaps, hitToRecap(hit))
	}
	return recaps, nil
}

func hitToRecap(hit meili.Hit) Recap {
	var recap Recap
	raw, err := json.Marshal(hit)
	if err != nil {
		return recap
	}
	_ = json.Unmarshal(raw, &recap)
	return recap
}
