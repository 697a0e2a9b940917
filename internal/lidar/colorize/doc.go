// Package colorize maps point attributes to normalised colour values.
//
// Responsibilities: choosing the scalar a point is coloured by (Scheme),
// normalising it into [0, 1] (Colorize, Normalize) and turning normalised
// values into RGB through a perceptual colour ramp (Ramp, ToRGB).
//
// Dependency rule: colorize depends only on cloud. Renderers consume its
// output; it never reads or writes files.
package colorize
