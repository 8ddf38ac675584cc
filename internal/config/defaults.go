package config

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Serial: Serial{
			Port:            "/dev/ttyACM0",
			BaudRate:        115200,
			ReadTimeoutMS:   250,
			ReadBufferBytes: 8192,
			CommandGapMS:    50,
			CommandFile:     "/etc/gnsstec/ubx.dat",
		},
		Paths: Paths{
			DataDir:    "/var/lib/gnsstec/data",
			ArchiveDir: "/var/lib/gnsstec/archive",
			LogDir:     "/var/lib/gnsstec/log",
		},
		Station: Station{
			Name:         "NJIT",
			Country:      "USA",
			ReceiverType: "U-Blox ZED F9P/02B-00",
			AntennaType:  "TOPGNSS AN-105L",
			Observer:     "H. Kim/NJIT",
		},
		Converter: Converter{
			PrimaryPath: "/usr/lib/gnsstec/bin/ubx2rinex",
			Sampling:    "1 s",
			Crinex:      true,
			Gzip:        true,
		},
		Capture: Capture{
			FlushIntervalSecs: 5,
			StatsIntervalSecs: 5,
		},
		NMEA: NMEA{
			ReportIntervalSecs: 30,
			ReportFormat:       "raw",
		},
		Conversion: Conversion{
			ConvertOnStart:   true,
			ShiftHours:       1,
			MaxDaysBack:      3,
			PollIntervalSecs: 5,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}
