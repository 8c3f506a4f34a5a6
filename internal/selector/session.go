package selector

import (
	"github.com/sirupsen/logrus"

	"github.com/nickromney-org/ota-release-selector/internal/jsonstream"
	"github.com/nickromney-org/ota-release-selector/internal/version"
)

// State is the position of the session within a releases document
type State int

const (
	AwaitingReleaseArray State = iota
	InReleaseArray
	InReleaseObject
	InAssetsArray
	InAssetObject
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingReleaseArray:
		return "awaiting-release-array"
	case InReleaseArray:
		return "in-release-array"
	case InReleaseObject:
		return "in-release-object"
	case InAssetsArray:
		return "in-assets-array"
	case InAssetObject:
		return "in-asset-object"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Stack depths of the containers the session tracks:
//
//	[ { "tag_name": .., "assets": [ { "name": .. } ] } ]
//	0 1  2                 2      3 4  5
const (
	releasesDepth     = 0
	releaseDepth      = 1
	releaseFieldDepth = 2
	assetsDepth       = 3
	assetDepth        = 4
	assetFieldDepth   = 5
)

const assetsKey = "assets"

// Session selects releases from one input stream. Obtain one from
// Engine.Begin, feed it every event in order and call End when done.
type Session struct {
	id      string
	cfg     Config
	engine  *Engine
	log     logrus.FieldLogger
	state   State
	release releaseScratch
	asset   assetScratch
	results *Collection
	ended   bool
}

// ID returns the session identifier used in log entries
func (s *Session) ID() string {
	return s.id
}

// State returns the current state of the session
func (s *Session) State() State {
	return s.state
}

// Results returns the releases committed so far
func (s *Session) Results() *Collection {
	return s.results
}

// HandleEvent advances the session by one tokenizer event. Events after End
// are ignored.
func (s *Session) HandleEvent(ev jsonstream.Event, stack jsonstream.Stack) {
	if s.ended {
		return
	}
	switch ev.Kind {
	case jsonstream.ObjectStart, jsonstream.ArrayStart:
		// the opened container is on top of the stack
		s.enter(ev.Kind, stack.Len()-1, stack)
	case jsonstream.ObjectEnd, jsonstream.ArrayEnd:
		// the closed container has already been popped
		s.leave(ev.Kind, stack.Len())
	default:
		s.extract(ev, stack)
	}
}

// End releases the engine for the next session and returns the committed
// releases. A release or asset that is still open is discarded.
func (s *Session) End() *Collection {
	if s.ended {
		return s.results
	}
	s.ended = true
	s.release = releaseScratch{}
	s.asset = assetScratch{}
	s.engine.release(s)
	s.log.WithFields(logrus.Fields{
		"state":    s.state.String(),
		"selected": s.results.Len(),
	}).Debug("Selection session ended")
	return s.results
}

func (s *Session) enter(kind jsonstream.Kind, depth int, stack jsonstream.Stack) {
	switch {
	case s.state == AwaitingReleaseArray && kind == jsonstream.ArrayStart && depth == releasesDepth:
		s.state = InReleaseArray
	case s.state == InReleaseArray && kind == jsonstream.ObjectStart && depth == releaseDepth:
		s.state = InReleaseObject
	case s.state == InReleaseObject && kind == jsonstream.ArrayStart && depth == assetsDepth &&
		stack.At(releaseFieldDepth).Name == assetsKey:
		s.state = InAssetsArray
	case s.state == InAssetsArray && kind == jsonstream.ObjectStart && depth == assetDepth:
		s.state = InAssetObject
	}
}

func (s *Session) leave(kind jsonstream.Kind, depth int) {
	switch {
	case s.state == InAssetObject && kind == jsonstream.ObjectEnd && depth == assetDepth:
		s.matchAsset()
		s.state = InAssetsArray
	case s.state == InAssetsArray && kind == jsonstream.ArrayEnd && depth == assetsDepth:
		s.state = InReleaseObject
	case s.state == InReleaseObject && kind == jsonstream.ObjectEnd && depth == releaseDepth:
		s.collectRelease()
		s.state = InReleaseArray
	case s.state == InReleaseArray && kind == jsonstream.ArrayEnd && depth == releasesDepth:
		s.state = Finished
	}
}

func (s *Session) extract(ev jsonstream.Event, stack jsonstream.Stack) {
	top := stack.Top()
	if top.Kind != jsonstream.Key {
		return
	}

	switch {
	case s.state == InReleaseObject && stack.Len() == releaseFieldDepth+1:
		s.extractRelease(top.Name, ev)
	case s.state == InAssetObject && stack.Len() == assetFieldDepth+1:
		s.extractAsset(top.Name, ev)
	}
}

func (s *Session) extractRelease(key string, ev jsonstream.Event) {
	r := &s.release
	switch {
	case key == "id" && ev.Kind == jsonstream.Number:
		r.id = parseInteger(ev.Value)
		s.log.Debugf("release.id=%d", r.id)
	case key == "name" && ev.Kind == jsonstream.String:
		r.set(&r.name, fieldName, ev.Value, MaxNameLen)
		s.log.Debugf("release.name=%s", r.name)
	case key == "tag_name" && ev.Kind == jsonstream.String:
		r.set(&r.tagName, fieldTagName, ev.Value, MaxTagNameLen)
		s.log.Debugf("release.tag_name=%s", r.tagName)
	case key == "created_at" && ev.Kind == jsonstream.String:
		r.set(&r.createdAt, fieldCreatedAt, ev.Value, MaxCreatedAtLen)
		s.log.Debugf("release.created_at=%s", r.createdAt)
	case key == "prerelease" && ev.Kind == jsonstream.True:
		r.prerelease = true
		s.log.Debug("release.prerelease=true")
	}
}

func (s *Session) extractAsset(key string, ev jsonstream.Event) {
	if ev.Kind != jsonstream.String {
		return
	}
	a := &s.asset
	switch key {
	case "name":
		a.name, a.nameTruncated = bound(ev.Value, MaxAssetNameLen)
		s.log.Debugf("asset.name=%s", a.name)
	case "browser_download_url":
		a.url, a.urlTruncated = bound(ev.Value, MaxURLLen)
		s.log.Debugf("asset.url=%s", a.url)
	}
}

// matchAsset runs when an asset object closes. The first matching asset of
// a release wins.
func (s *Session) matchAsset() {
	a := s.asset
	s.asset = assetScratch{}

	if a.url == "" || a.nameTruncated || a.name != s.cfg.TargetFilename {
		return
	}
	if s.release.downloadURL != "" {
		s.log.WithField("asset", a.name).Debug("Ignoring additional matching asset")
		return
	}
	s.release.downloadURL = a.url
	if a.urlTruncated {
		s.release.truncated |= fieldDownloadURL
	}
	s.log.Debugf("release.download_url=%s", s.release.downloadURL)
}

// collectRelease runs when a release object closes
func (s *Session) collectRelease() {
	r := s.release
	s.release = releaseScratch{}

	entry := s.log.WithFields(logrus.Fields{
		"id":         r.id,
		"name":       r.name,
		"tag_name":   r.tagName,
		"created_at": r.createdAt,
		"prerelease": r.prerelease,
	})

	if r.downloadURL == "" {
		entry.Debug("Release has no matching asset")
		return
	}

	prerelease := r.prerelease == s.cfg.Prerelease
	newer := s.checkNewer(r.tagName)
	id := s.cfg.ReleaseID == 0 || s.cfg.ReleaseID == r.id

	entry = entry.WithFields(logrus.Fields{
		"prerelease_check": prerelease,
		"newer_check":      newer,
		"release_check":    id,
	})
	if !prerelease || !newer || !id {
		entry.Info("Release rejected by filters")
		return
	}

	if !s.results.add(r.snapshot()) {
		entry.WithField("capacity", s.results.Cap()).Debug("Result collection full, dropping release")
		return
	}
	entry.WithField("selected", s.results.Len()).Info("Release selected")
}

// checkNewer fails closed when either version cannot be parsed
func (s *Session) checkNewer(tag string) bool {
	if s.cfg.NewerThan == "" {
		return true
	}
	newer, err := version.IsNewer(tag, s.cfg.NewerThan)
	if err != nil {
		s.log.WithError(err).Debug("Version comparison failed")
		return false
	}
	return newer
}
