package config

import "strings"

// normalize expands user paths and trims free-form values before validation.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Serial.CommandFile, err = expandPath(strings.TrimSpace(c.Serial.CommandFile)); err != nil {
		return err
	}
	if c.Converter.PrimaryPath, err = expandPath(strings.TrimSpace(c.Converter.PrimaryPath)); err != nil {
		return err
	}
	if fallback := strings.TrimSpace(c.Converter.FallbackPath); fallback != "" {
		if c.Converter.FallbackPath, err = expandPath(fallback); err != nil {
			return err
		}
	} else {
		c.Converter.FallbackPath = ""
	}

	c.Serial.Port = strings.TrimSpace(c.Serial.Port)
	c.Station.Name = strings.TrimSpace(c.Station.Name)
	c.Station.Country = strings.TrimSpace(c.Station.Country)
	c.Station.Observer = strings.TrimSpace(c.Station.Observer)
	c.NMEA.ReportFormat = strings.ToLower(strings.TrimSpace(c.NMEA.ReportFormat))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Converter.Sampling = strings.TrimSpace(c.Converter.Sampling)
	return nil
}
