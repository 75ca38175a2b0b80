package service

import (
	"sync"

	"GymSearch-App/internal/domain/helper"
	"GymSearch-App/internal/domain/model"
)

// searchSession 1回の検索に閉じた状態
// ワーカーはこのアクセサ経由でのみ共有状態に触れる
type searchSession struct {
	requestID string

	mu         sync.Mutex
	overlay    map[model.TileKey][]model.Venue // この検索で確定済みのタイル
	aggregates map[model.TileKey]*tileAggregate // ページング途中のタイル
	writes     []model.TileCacheEntry
	stats      model.SearchStats
}

type tileAggregate struct {
	tile   model.Tile
	venues []model.Venue
}

func newSearchSession(requestID string) *searchSession {
	return &searchSession{
		requestID:  requestID,
		overlay:    make(map[model.TileKey][]model.Venue),
		aggregates: make(map[model.TileKey]*tileAggregate),
	}
}

func (s *searchSession) lookup(key model.TileKey) ([]model.Venue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	venues, ok := s.overlay[key]
	return venues, ok
}

func (s *searchSession) resolve(key model.TileKey, venues []model.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay[key] = venues
}

func (s *searchSession) startAggregate(tile model.Tile, firstPage []model.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[tile.Key()] = &tileAggregate{tile: tile, venues: helper.DedupByProviderID(firstPage)}
}

// appendAggregate ページを集計に加え、現在の件数を返す
func (s *searchSession) appendAggregate(key model.TileKey, page []model.Venue) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.aggregates[key]
	if !ok {
		return 0
	}
	agg.venues = helper.MergeVenues(agg.venues, page)
	return len(agg.venues)
}

// finishAggregate 集計を取り出して破棄する
func (s *searchSession) finishAggregate(key model.TileKey) []model.Venue {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.aggregates[key]
	if !ok {
		return nil
	}
	delete(s.aggregates, key)
	return agg.venues
}

// drainAggregates 打ち切りで続きのページが処理されなかった集計を全て取り出す
// 取得済みページだけの結果なのでキャッシュには書かない
func (s *searchSession) drainAggregates() []tileOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	var outcomes []tileOutcome
	for key, agg := range s.aggregates {
		if len(agg.venues) > 0 {
			outcomes = append(outcomes, tileOutcome{Tile: agg.tile, Venues: agg.venues})
		}
		delete(s.aggregates, key)
	}
	return outcomes
}

func (s *searchSession) queueWrite(entry model.TileCacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, entry)
}

func (s *searchSession) takeWrites() []model.TileCacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	writes := s.writes
	s.writes = nil
	return writes
}

func (s *searchSession) update(fn func(stats *model.SearchStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

func (s *searchSession) snapshot() model.SearchStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
