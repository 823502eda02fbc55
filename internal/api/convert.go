package api

import "screensearch/internal/store"

func toTagResponse(t store.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name, Color: t.Color, CreatedAt: t.CreatedAt}
}

func toTagResponses(tags []store.Tag) []TagResponse {
	out := make([]TagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, toTagResponse(t))
	}
	return out
}

func toFrameResponse(f store.Frame, ocrText string, tags []store.Tag) FrameResponse {
	appName := ""
	if f.ActiveProcess != nil {
		appName = *f.ActiveProcess
	}
	windowName := ""
	if f.ActiveWindow != nil {
		windowName = *f.ActiveWindow
	}
	return FrameResponse{
		ID:         f.ID,
		Timestamp:  f.Timestamp,
		FilePath:   f.FilePath,
		AppName:    appName,
		WindowName: windowName,
		OcrText:    ocrText,
		Tags:       toTagResponses(tags),
	}
}

func toSettingsResponse(s store.Settings) settingsResponse {
	return settingsResponse{
		ID:              s.ID,
		CaptureInterval: s.CaptureInterval,
		Monitors:        s.Monitors,
		ExcludedApps:    s.ExcludedApps,
		IsPaused:        s.IsPaused,
		RetentionDays:   s.RetentionDays,
		VisionEnabled:   s.VisionEnabled,
		VisionEndpoint:  s.VisionEndpoint,
		VisionModel:     s.VisionModel,
		VisionProvider:  s.VisionProvider,
		VisionAPIKey:    s.VisionAPIKey,
		UpdatedAt:       s.UpdatedAt,
	}
}
