package provider

import "wisefido-health-sync/internal/models"

// Workout activity type codes used by the health store.
var workoutCategories = map[int]string{
	37: models.WorkoutRunning,
	52: models.WorkoutWalking,
	13: models.WorkoutCycling,
	46: models.WorkoutSwimming,
	57: models.WorkoutYoga,
	20: models.WorkoutStrength, // functional strength training
	50: models.WorkoutStrength, // traditional strength training
	63: models.WorkoutHIIT,
	16: models.WorkoutElliptical,
	35: models.WorkoutRowing,
	24: models.WorkoutHiking,
}

// WorkoutCategory maps an activity code to a category; unknown codes fall
// back to models.WorkoutOther.
func WorkoutCategory(code int) string {
	if c, ok := workoutCategories[code]; ok {
		return c
	}
	return models.WorkoutOther
}

// SleepStage maps a sleep analysis value to a stage; unknown values map
// to models.SleepUnknown.
func SleepStage(code int) string {
	switch code {
	case 0:
		return models.SleepInBed
	case 1:
		return models.SleepAsleep
	case 2:
		return models.SleepAwake
	case 3:
		return models.SleepCore
	case 4:
		return models.SleepDeep
	case 5:
		return models.SleepREM
	default:
		return models.SleepUnknown
	}
}
