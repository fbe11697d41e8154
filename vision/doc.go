// Package vision keeps the latest camera frame of each voice session so the
// view_camera tool can show it to the model.
//
// Frames arrive far more often than they are needed. A Buffer captures at
// most one frame per capture interval and keeps only the newest; raw frames
// are downscaled and JPEG-encoded on capture. A Store holds one Buffer per
// session.
package vision
