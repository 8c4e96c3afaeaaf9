package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/seantiz/babelpdf/internal/settings"
	"github.com/seantiz/babelpdf/internal/translator"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	raw, err := s.store.GetConfig(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("load config", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load configuration")
		return
	}

	s.writeJSON(w, http.StatusOK, settings.FromStored(raw))
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	doc, err := settings.Parse(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.persistSettings(r, u.ID, doc); err != nil {
		s.logger.Error("save config", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save configuration")
		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleExportConfig(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	raw, err := s.store.GetConfig(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("load config for export", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load configuration")
		return
	}
	doc := settings.FromStored(raw)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.logger.Error("encode config export", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to encode configuration")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "babelpdf_config_"+u.Username+".json"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		s.logger.Error("write config export", "user_id", u.ID, "error", err)
	}
}

// handleImportConfig accepts a previously exported settings document and
// replaces the stored configuration wholesale. Export and import use the
// same shape, so a saved export round-trips unchanged.
func (s *Server) handleImportConfig(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	doc, err := settings.Parse(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.persistSettings(r, u.ID, doc); err != nil {
		s.logger.Error("import config", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save configuration")
		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

// handlePatchService replaces only the translation service section, keeping
// output and tuning options untouched.
func (s *Server) handlePatchService(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)

	var sc settings.ServiceConfig
	if err := decodeBody(w, r, &sc); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Reject unknown tags and missing credentials before anything is stored.
	if _, err := translator.FromService(sc); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The translator treats an absent tag as the free service; the stored
	// document must carry the explicit tag or the next read rejects it.
	if sc.ServiceType == "" {
		sc.ServiceType = settings.ServiceSiliconFlowFree
	}

	raw, err := s.store.GetConfig(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("load config for service update", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load configuration")
		return
	}
	doc := settings.FromStored(raw)
	doc.TranslationService = sc
	if err := doc.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.persistSettings(r, u.ID, doc); err != nil {
		s.logger.Error("save service update", "user_id", u.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save configuration")
		return
	}

	s.writeJSON(w, http.StatusOK, doc)
}

// persistSettings writes the settings document to the database and its
// file mirror. The mirror is authoritative for the engine, so a mirror
// failure fails the whole update.
func (s *Server) persistSettings(r *http.Request, userID string, doc settings.Document) error {
	raw, err := doc.Encode()
	if err != nil {
		return err
	}
	if err := s.store.PutConfig(r.Context(), userID, raw); err != nil {
		return err
	}
	return settings.Mirror(s.layout.SettingsFile(userID), doc)
}
