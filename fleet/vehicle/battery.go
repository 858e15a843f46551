package vehicle

// NeedsCharge reports whether the vehicle must stop at the current cell.
func (v *Vehicle) NeedsCharge() bool {
	return v.Battery <= ChargeThreshold
}

// Recharge fills the battery. A bike's range starts over as well.
func (v *Vehicle) Recharge() {
	v.Battery = FullBattery
	if v.Kind == Bike {
		v.DistanceCovered = 0
	}
}

// Advance records one traversed cell. Only bikes track distance.
func (v *Vehicle) Advance() {
	if v.Kind == Bike {
		v.DistanceCovered++
	}
}

// Drain applies the per-cell battery consumption.
//
// Bikes with a configured range derive the level from the distance covered
// since the last charge; everything else loses a fixed amount per cell.
func (v *Vehicle) Drain() {
	if v.Kind == Bike && v.RangePerCharge > 0 {
		if float64(v.DistanceCovered) >= v.RangePerCharge {
			v.Battery = 0
		} else {
			v.Battery = int(FullBattery * (1 - float64(v.DistanceCovered)/v.RangePerCharge))
		}
	} else {
		v.Battery -= DrainPerCell
	}

	if v.Battery < 0 {
		v.Battery = 0
	}
	if v.Battery > FullBattery {
		v.Battery = FullBattery
	}
}
